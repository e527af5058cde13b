package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex inv_01JA6Z3TQ3V6X9S2Y1KQ3M8B7C
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

var (
	sidGenerator *shortid.Shortid
	once         sync.Once
)

func initializeSID() {
	var err error
	sidGenerator, err = shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		panic("failed to initialize shortid generator: " + err.Error())
	}
}

// GenerateShortIDWithPrefix returns a short human friendly ID with a prefix.
// Total length is capped at 12 characters, e.g. `RCPXYZ12A8Q`.
func GenerateShortIDWithPrefix(prefix string) string {
	once.Do(initializeSID)

	id, err := sidGenerator.Generate()
	if err != nil {
		return ""
	}
	id = strings.ReplaceAll(id, "-", "")
	id = strings.ReplaceAll(id, "_", "")

	availableLen := 12 - len(prefix)
	if availableLen <= 0 {
		return ""
	}

	if len(id) > availableLen {
		id = id[:availableLen]
	}

	return strings.ToUpper(fmt.Sprintf("%s%s", prefix, id))
}

const (
	UUID_PREFIX_INVOICE                 = "inv"
	UUID_PREFIX_INVOICE_ITEM            = "inv_item"
	UUID_PREFIX_PAYMENT                 = "pay"
	UUID_PREFIX_LEDGER_ENTRY            = "led"
	UUID_PREFIX_ADVANCE_PAYMENT         = "adv"
	UUID_PREFIX_ADVANCE_MONTHLY_PAYMENT = "adv_month"
	UUID_PREFIX_PLAN                    = "plan"
	UUID_PREFIX_CUSTOMER_PLAN           = "cplan"
	UUID_PREFIX_NETWORK_BINDING         = "bind"
	UUID_PREFIX_EVENT                   = "evt"

	SHORT_ID_PREFIX_INVOICE = "INV"
	SHORT_ID_PREFIX_RECEIPT = "RCP"
)
