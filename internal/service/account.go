package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wispbill/wispbill/internal/api/dto"
	"github.com/wispbill/wispbill/internal/domain/account"
	"github.com/wispbill/wispbill/internal/domain/ledger"
	"github.com/wispbill/wispbill/internal/types"
)

// AccountService exposes billing accounts and their ledgers
type AccountService interface {
	GetAccount(ctx context.Context, customerID string) (*dto.BillingAccountResponse, error)
	ListAccounts(ctx context.Context, filter *types.BillingAccountFilter) (*dto.ListBillingAccountsResponse, error)
	UpdateAccount(ctx context.Context, customerID string, req dto.UpdateBillingAccountRequest) (*dto.BillingAccountResponse, error)
	ListLedgerEntries(ctx context.Context, filter *types.LedgerEntryFilter) (*dto.ListLedgerEntriesResponse, error)
	// VerifyBalance replays the BALANCE book and compares it with the stored
	// balance
	VerifyBalance(ctx context.Context, customerID string) (*dto.VerifyBalanceResponse, error)
}

type accountService struct {
	ServiceParams
}

func NewAccountService(params ServiceParams) AccountService {
	return &accountService{ServiceParams: params}
}

func (s *accountService) GetAccount(ctx context.Context, customerID string) (*dto.BillingAccountResponse, error) {
	acc, err := s.AccountRepo.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	advance, err := s.advanceCredit(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return dto.NewBillingAccountResponse(acc, advance), nil
}

// advanceCredit is what the ADVANCE book still holds
func (s *accountService) advanceCredit(ctx context.Context, customerID string) (decimal.Decimal, error) {
	entries, err := s.LedgerRepo.List(ctx, types.NewReplayLedgerEntryFilter(customerID, types.LedgerBookAdvance))
	if err != nil {
		return decimal.Zero, err
	}
	return ledger.Replay(entries, types.LedgerBookAdvance).Neg(), nil
}

func (s *accountService) ListAccounts(ctx context.Context, filter *types.BillingAccountFilter) (*dto.ListBillingAccountsResponse, error) {
	if filter == nil {
		filter = types.NewBillingAccountFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	accounts, err := s.AccountRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	count, err := s.AccountRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.BillingAccountResponse, 0, len(accounts))
	for _, acc := range accounts {
		advance, err := s.advanceCredit(ctx, acc.CustomerID)
		if err != nil {
			return nil, err
		}
		items = append(items, dto.NewBillingAccountResponse(acc, advance))
	}
	resp := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *accountService) UpdateAccount(ctx context.Context, customerID string, req dto.UpdateBillingAccountRequest) (*dto.BillingAccountResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var acc *account.BillingAccount
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		acc, err = s.getOrCreateAccount(ctx, customerID)
		if err != nil {
			return err
		}
		if req.AutoSuspend != nil {
			acc.AutoSuspend = *req.AutoSuspend
		}
		if req.CreditLimit != nil {
			acc.CreditLimit = req.CreditLimit.Round(2)
		}
		acc.Touch(ctx, s.now())
		return s.AccountRepo.Update(ctx, acc)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("billing account updated",
		"customer_id", customerID,
		"auto_suspend", acc.AutoSuspend,
		"credit_limit", acc.CreditLimit.String())
	return s.GetAccount(ctx, customerID)
}

func (s *accountService) ListLedgerEntries(ctx context.Context, filter *types.LedgerEntryFilter) (*dto.ListLedgerEntriesResponse, error) {
	if filter == nil {
		filter = types.NewLedgerEntryFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	entries, err := s.LedgerRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	count, err := s.LedgerRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	resp := types.NewListResponse(entries, count, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *accountService) VerifyBalance(ctx context.Context, customerID string) (*dto.VerifyBalanceResponse, error) {
	acc, err := s.AccountRepo.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	entries, err := s.LedgerRepo.List(ctx, types.NewReplayLedgerEntryFilter(customerID, types.LedgerBookBalance))
	if err != nil {
		return nil, err
	}

	resp := &dto.VerifyBalanceResponse{
		CustomerID: customerID,
		Stored:     acc.Balance,
		Replayed:   ledger.Replay(entries, types.LedgerBookBalance),
	}
	resp.Consistent = ledger.Verify(customerID, acc.Balance, entries) == nil
	if !resp.Consistent {
		s.Logger.Errorw("ledger drift detected",
			"customer_id", customerID,
			"stored", resp.Stored.String(),
			"replayed", resp.Replayed.String())
	}
	return resp, nil
}
