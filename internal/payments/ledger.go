package payments

import (
	"context"

	"github.com/pohlai88/ledgercore/internal/bills"
	"github.com/pohlai88/ledgercore/internal/invoices"
	"github.com/pohlai88/ledgercore/internal/shared"
)

// InvoiceLedger adapts the invoice service to the DocumentLedger
// contract used by the allocator.
type InvoiceLedger struct {
	service *invoices.Service
}

// NewInvoiceLedger wraps the invoice service.
func NewInvoiceLedger(service *invoices.Service) *InvoiceLedger {
	return &InvoiceLedger{service: service}
}

func (l *InvoiceLedger) Balance(ctx context.Context, scope shared.Scope, id int64) (float64, error) {
	inv, err := l.service.Get(ctx, scope, id)
	if err != nil {
		return 0, err
	}
	return inv.BalanceAmount, nil
}

func (l *InvoiceLedger) ApplyPayment(ctx context.Context, scope shared.Scope, id int64, amount float64) error {
	_, err := l.service.RecordPayment(ctx, scope, id, amount)
	return err
}

// BillLedger adapts the bill service to the DocumentLedger contract.
type BillLedger struct {
	service *bills.Service
}

// NewBillLedger wraps the bill service.
func NewBillLedger(service *bills.Service) *BillLedger {
	return &BillLedger{service: service}
}

func (l *BillLedger) Balance(ctx context.Context, scope shared.Scope, id int64) (float64, error) {
	bill, err := l.service.Get(ctx, scope, id)
	if err != nil {
		return 0, err
	}
	return bill.BalanceAmount, nil
}

func (l *BillLedger) ApplyPayment(ctx context.Context, scope shared.Scope, id int64, amount float64) error {
	_, err := l.service.RecordPayment(ctx, scope, id, amount)
	return err
}
