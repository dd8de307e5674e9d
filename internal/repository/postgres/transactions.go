package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/repository"
)

var transactionColumns = []string{
	"t.id",
	"t.service_id",
	"t.amount",
	"t.currency",
	"t.title",
	"t.customer_first_name",
	"t.customer_last_name",
	"t.customer_email",
	"t.customer_phone",
	"t.status",
	"t.payment_link_id",
	"t.created_at",
}

// TransactionRepository implements port.TransactionRepository.
type TransactionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTransactionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewTransactionRepository(exec pgExecutor) *TransactionRepository {
	return &TransactionRepository{exec: exec, builder: newBuilder()}
}

// Create inserts a transaction and returns it with the generated id and timestamp.
func (r *TransactionRepository) Create(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	status := t.Status
	if status == "" {
		status = domain.StatusPending
	}

	stmt, args, err := r.builder.Insert("transactions").
		Columns(
			"service_id",
			"amount",
			"currency",
			"title",
			"customer_first_name",
			"customer_last_name",
			"customer_email",
			"customer_phone",
			"status",
			"payment_link_id",
		).
		Values(
			t.ServiceID,
			t.Amount,
			t.Currency,
			t.Title,
			t.Customer.FirstName,
			t.Customer.LastName,
			t.Customer.Email,
			t.Customer.Phone,
			string(status),
			t.PaymentLinkID,
		).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("build insert transaction sql: %w", err)
	}

	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&t.ID, &t.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.Transaction{}, fmt.Errorf("insert transaction: %w", repository.ErrConflict)
		}
		return domain.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	t.Status = status
	return t, nil
}

// GetByPaymentLink loads the transaction addressed by a payment link id.
func (r *TransactionRepository) GetByPaymentLink(ctx context.Context, paymentLinkID string) (*domain.Transaction, error) {
	stmt, args, err := r.builder.Select(transactionColumns...).
		From("transactions t").
		Where(squirrel.Eq{"t.payment_link_id": paymentLinkID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select transaction sql: %w", err)
	}

	t, err := scanTransaction(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}

// UpdateStatusForMerchant sets status on a transaction whose shop belongs to merchantID.
// A missing row and a foreign row are indistinguishable and both yield ErrNotFound.
func (r *TransactionRepository) UpdateStatusForMerchant(ctx context.Context, merchantID, transactionID int64, status domain.TransactionStatus) error {
	stmt, args, err := r.builder.Update("transactions").
		Set("status", string(status)).
		Where(squirrel.Eq{"id": transactionID}).
		Where("service_id IN (SELECT s.service_id FROM shops s WHERE s.merchant_id = ?)", merchantID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update transaction status sql: %w", err)
	}
	return r.execUpdate(ctx, stmt, args)
}

// UpdateStatusByPaymentLink sets status on the transaction addressed by a payment link.
func (r *TransactionRepository) UpdateStatusByPaymentLink(ctx context.Context, paymentLinkID string, status domain.TransactionStatus) error {
	stmt, args, err := r.builder.Update("transactions").
		Set("status", string(status)).
		Where(squirrel.Eq{"payment_link_id": paymentLinkID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update payment link status sql: %w", err)
	}
	return r.execUpdate(ctx, stmt, args)
}

func (r *TransactionRepository) execUpdate(ctx context.Context, stmt string, args []interface{}) error {
	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// likeEscaper quotes LIKE metacharacters with backslash, the PostgreSQL default escape.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ListByMerchant pages through transactions across all of a merchant's shops.
func (r *TransactionRepository) ListByMerchant(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int, error) {
	where := squirrel.And{squirrel.Eq{"s.merchant_id": filter.MerchantID}}
	if filter.Status != "" {
		where = append(where, squirrel.Eq{"t.status": filter.Status})
	}
	if filter.Currency != "" {
		where = append(where, squirrel.Eq{"t.currency": filter.Currency})
	}
	if filter.Search != "" {
		pattern := "%" + likeEscaper.Replace(filter.Search) + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"t.title": pattern},
			squirrel.Expr("CAST(t.id AS TEXT) LIKE ?", pattern),
		})
	}

	countStmt, countArgs, err := r.builder.Select("COUNT(*)").
		From("transactions t").
		Join("shops s ON s.service_id = t.service_id").
		Where(where).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count transactions sql: %w", err)
	}

	var total int
	if err := r.exec.QueryRow(ctx, countStmt, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	order := "DESC"
	if filter.SortAsc {
		order = "ASC"
	}

	query := r.builder.Select(transactionColumns...).
		From("transactions t").
		Join("shops s ON s.service_id = t.service_id").
		Where(where).
		OrderBy(fmt.Sprintf("t.%s %s", filter.NormalizedSortBy(), order))
	if filter.Page.Size > 0 {
		query = query.Limit(uint64(filter.Page.Size)).Offset(uint64(filter.Page.Offset()))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list transactions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transactions: %w", err)
	}

	return out, total, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t      domain.Transaction
		status string
	)
	if err := row.Scan(
		&t.ID,
		&t.ServiceID,
		&t.Amount,
		&t.Currency,
		&t.Title,
		&t.Customer.FirstName,
		&t.Customer.LastName,
		&t.Customer.Email,
		&t.Customer.Phone,
		&status,
		&t.PaymentLinkID,
		&t.CreatedAt,
	); err != nil {
		return nil, err
	}
	t.Status = domain.TransactionStatus(status)
	return &t, nil
}
