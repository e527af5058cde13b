package testutil

import (
	"context"
	"fmt"
	"sync"

	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/integration/document"
	"github.com/wispbill/wispbill/internal/integration/network"
	"github.com/wispbill/wispbill/internal/integration/notification"
	"github.com/wispbill/wispbill/internal/s3"
)

// ProfileChange is one call made to the network controller
type ProfileChange struct {
	Username string
	Profile  string
}

// FakeNetworkController records profile changes. Usernames listed in
// FailFor return an external error.
type FakeNetworkController struct {
	mu      sync.Mutex
	calls   []ProfileChange
	failFor map[string]bool
}

var _ network.Controller = (*FakeNetworkController)(nil)

func NewFakeNetworkController() *FakeNetworkController {
	return &FakeNetworkController{failFor: make(map[string]bool)}
}

func (f *FakeNetworkController) ChangeProfile(_ context.Context, username, profile string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, ProfileChange{Username: username, Profile: profile})
	if f.failFor[username] {
		return ierr.NewErrorf("controller rejected %s", username).Mark(ierr.ErrExternal)
	}
	return nil
}

// FailFor makes every call for username fail
func (f *FakeNetworkController) FailFor(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor[username] = true
}

func (f *FakeNetworkController) Calls() []ProfileChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ProfileChange(nil), f.calls...)
}

func (f *FakeNetworkController) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.failFor = make(map[string]bool)
}

// FakeNotificationGateway records messages and can be told to fail
type FakeNotificationGateway struct {
	mu       sync.Mutex
	messages []*notification.Message
	err      error
}

var _ notification.Gateway = (*FakeNotificationGateway)(nil)

func NewFakeNotificationGateway() *FakeNotificationGateway {
	return &FakeNotificationGateway{}
}

func (f *FakeNotificationGateway) Send(_ context.Context, msg *notification.Message) (*notification.DeliveryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	f.messages = append(f.messages, msg)
	return &notification.DeliveryResult{
		Delivered: true,
		MessageID: fmt.Sprintf("msg_%d", len(f.messages)),
	}, nil
}

// SetError makes subsequent sends fail with err; nil restores delivery
func (f *FakeNotificationGateway) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *FakeNotificationGateway) Messages() []*notification.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*notification.Message(nil), f.messages...)
}

// MessagesOfKind filters recorded messages by kind
func (f *FakeNotificationGateway) MessagesOfKind(kind notification.Kind) []*notification.Message {
	out := make([]*notification.Message, 0)
	for _, m := range f.Messages() {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// FakeDocumentGenerator returns a small fixed document for every invoice
type FakeDocumentGenerator struct {
	mu       sync.Mutex
	rendered []string
	err      error
}

var _ document.Generator = (*FakeDocumentGenerator)(nil)

func NewFakeDocumentGenerator() *FakeDocumentGenerator {
	return &FakeDocumentGenerator{}
}

func (f *FakeDocumentGenerator) RenderInvoice(_ context.Context, invoiceID string) (*document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	f.rendered = append(f.rendered, invoiceID)
	return &document.Document{
		ID:          invoiceID,
		Filename:    invoiceID + ".pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4 " + invoiceID),
	}, nil
}

func (f *FakeDocumentGenerator) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *FakeDocumentGenerator) Rendered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rendered...)
}

// FakeReceiptStore keeps uploaded documents in memory
type FakeReceiptStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

var _ s3.Service = (*FakeReceiptStore)(nil)

func NewFakeReceiptStore() *FakeReceiptStore {
	return &FakeReceiptStore{docs: make(map[string][]byte)}
}

func (f *FakeReceiptStore) key(id string, docType s3.DocumentType) string {
	return fmt.Sprintf("%ss/%s.pdf", docType, id)
}

func (f *FakeReceiptStore) UploadDocument(_ context.Context, doc *s3.Document) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.key(doc.ID, doc.Type)
	f.docs[key] = doc.Data
	return "s3://test-bucket/" + key, nil
}

func (f *FakeReceiptStore) GetPresignedUrl(_ context.Context, id string, docType s3.DocumentType) (string, error) {
	return "https://test-bucket.local/" + f.key(id, docType), nil
}

func (f *FakeReceiptStore) GetDocument(_ context.Context, id string, docType s3.DocumentType) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.docs[f.key(id, docType)]
	if !ok {
		return nil, ierr.NewError("document not found").Mark(ierr.ErrNotFound)
	}
	return data, nil
}

func (f *FakeReceiptStore) Exists(_ context.Context, id string, docType s3.DocumentType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.docs[f.key(id, docType)]
	return ok, nil
}
