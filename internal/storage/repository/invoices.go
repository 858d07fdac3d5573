package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/subscription-licensing/internal/models"
)

const invoiceColumns = `id, invoice_number, user_id, pending_user_id, purpose,
			      amount, status, payment_url, gateway_response, paid_at, created_at`

func scanInvoice(row interface{ Scan(...any) error }) (*models.Invoice, error) {
	inv := &models.Invoice{}
	var userID, pendingUserID sql.NullInt64
	var paymentURL sql.NullString
	var gatewayResponse []byte
	var paidAt sql.NullTime
	if err := row.Scan(&inv.ID, &inv.InvoiceNumber, &userID, &pendingUserID, &inv.Purpose,
		&inv.Amount, &inv.Status, &paymentURL, &gatewayResponse, &paidAt, &inv.CreatedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		inv.UserID = &userID.Int64
	}
	if pendingUserID.Valid {
		inv.PendingUserID = &pendingUserID.Int64
	}
	if paymentURL.Valid {
		inv.PaymentURL = paymentURL.String
	}
	inv.GatewayResponse = gatewayResponse
	if paidAt.Valid {
		t := paidAt.Time
		inv.PaidAt = &t
	}
	return inv, nil
}

// CancelPendingInvoices отменяет все pending-счета владельца. Вызывается
// перед выпиской нового счета: на владельца не должно оставаться более
// одного ожидающего счета.
func (s *Storage) CancelPendingInvoices(ctx context.Context, userID, pendingUserID *int64) error {
	const op = "storage.CancelPendingInvoices"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE invoices
			  SET status = $1
			  WHERE status = $2
			    AND ((user_id IS NOT NULL AND user_id = $3)
			      OR (pending_user_id IS NOT NULL AND pending_user_id = $4))`
	_, err := s.DB.ExecContext(ctx, query,
		models.InvoiceCancelled, models.InvoicePending, userID, pendingUserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CreateInvoice сохраняет новый счет в статусе pending и возвращает его ID.
func (s *Storage) CreateInvoice(ctx context.Context, inv models.Invoice) (int64, error) {
	const op = "storage.CreateInvoice"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO invoices (invoice_number, user_id, pending_user_id, purpose, amount, status)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		inv.InvoiceNumber, inv.UserID, inv.PendingUserID, inv.Purpose, inv.Amount,
		models.InvoicePending).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// SetInvoicePaymentURL сохраняет на счете ссылку на оплату и сырой ответ шлюза.
func (s *Storage) SetInvoicePaymentURL(ctx context.Context, id int64, paymentURL string, gatewayResponse []byte) error {
	const op = "storage.SetInvoicePaymentURL"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE invoices
			  SET payment_url = $1, gateway_response = $2
			  WHERE id = $3`
	_, err := s.DB.ExecContext(ctx, query, paymentURL, gatewayResponse, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetInvoiceByNumber возвращает счет по его номеру.
func (s *Storage) GetInvoiceByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	const op = "storage.GetInvoiceByNumber"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + invoiceColumns + `
			  FROM invoices
			  WHERE invoice_number = $1`
	inv, err := scanInvoice(s.DB.QueryRowContext(ctx, query, number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrInvoiceNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return inv, nil
}

// MarkInvoiceFailed переводит pending-счет в failed. Переход одностороннний:
// счет в другом статусе не трогается и возвращается ErrInvoiceNotPending.
func (s *Storage) MarkInvoiceFailed(ctx context.Context, number string) error {
	const op = "storage.MarkInvoiceFailed"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE invoices
			  SET status = $1
			  WHERE invoice_number = $2 AND status = $3`
	res, err := s.DB.ExecContext(ctx, query, models.InvoiceFailed, number, models.InvoicePending)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrInvoiceNotPending)
	}
	return nil
}

// SettleInvoicePaid закрывает счет как оплаченный внутри одной транзакции
// с блокировкой строки счета: повторные редиректы шлюза сериализуются.
// Запись платежа дедуплицируется по паре (invoice_id, provider_transaction_id).
// Возвращает счет и признак "уже был оплачен" (без побочных эффектов).
func (s *Storage) SettleInvoicePaid(ctx context.Context, number, providerTxnID string, amount int64, rawResponse []byte) (*models.Invoice, bool, error) {
	const op = "storage.SettleInvoicePaid"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT ` + invoiceColumns + `
			  FROM invoices
			  WHERE invoice_number = $1
			  FOR UPDATE`
	inv, err := scanInvoice(tx.QueryRowContext(ctx, query, number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, fmt.Errorf("%s: %w", op, models.ErrInvoiceNotFound)
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	if inv.Status == models.InvoicePaid {
		return inv, true, nil
	}
	if inv.Status != models.InvoicePending {
		return nil, false, fmt.Errorf("%s: %w", op, models.ErrInvoiceNotPending)
	}

	insertPayment := `INSERT INTO payments (invoice_id, provider_transaction_id, amount, raw_response)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (invoice_id, provider_transaction_id) DO NOTHING`
	if _, err := tx.ExecContext(ctx, insertPayment, inv.ID, providerTxnID, amount, rawResponse); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	markPaid := `UPDATE invoices
			  SET status = $1, paid_at = NOW()
			  WHERE id = $2`
	if _, err := tx.ExecContext(ctx, markPaid, models.InvoicePaid, inv.ID); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	inv.Status = models.InvoicePaid
	return inv, false, nil
}

// ListPaymentsByInvoice возвращает платежи по счету.
func (s *Storage) ListPaymentsByInvoice(ctx context.Context, invoiceID int64) ([]*models.Payment, error) {
	const op = "storage.ListPaymentsByInvoice"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, invoice_id, provider_transaction_id, amount, raw_response, created_at
			  FROM payments
			  WHERE invoice_id = $1
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.ProviderTxnID, &p.Amount,
			&p.RawResponse, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
