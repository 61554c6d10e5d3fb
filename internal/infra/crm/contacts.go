package crm

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boddenberg/sellernotes-bot-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// StoredContact is a persisted contact event.
type StoredContact struct {
	ID int64 `json:"id"`
	domain.ContactMessage
	CreatedAt time.Time `json:"created_at"`
}

// ContactStore persists contact events in SQLite.
type ContactStore struct {
	db     *sql.DB
	tokens TokenValidator
	logger *zap.Logger
}

// OpenContactStore opens (and creates) the database at path. ":memory:"
// gives a private in-memory database.
func OpenContactStore(path string, tokens TokenValidator, logger *zap.Logger) (*ContactStore, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open contacts db: %w", err)
	}
	// single connection: SQLite serializes writers anyway, and an
	// in-memory database exists per connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &ContactStore{db: db, tokens: tokens, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("contacts migration failed: %w", err)
	}
	return s, nil
}

func (s *ContactStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contacts (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id        INTEGER NOT NULL,
		utc_date_ticks     INTEGER NOT NULL,
		text               TEXT NOT NULL,
		person_of_customer TEXT NOT NULL,
		channel            INTEGER NOT NULL,
		created_at         DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_contacts_customer ON contacts(customer_id, utc_date_ticks);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save stores msg. A rejected token or an invalid record is reported in
// the result; only database failures are errors.
func (s *ContactStore) Save(ctx context.Context, token string, msg *domain.ContactMessage) (*domain.SaveResult, error) {
	ctx, span := crmTracer.Start(ctx, "ContactStore.Save")
	defer span.End()
	span.SetAttributes(attribute.Int("customer.id", msg.CustomerID))

	if _, err := s.tokens.ValidateToken(token); err != nil {
		return &domain.SaveResult{Success: false, ErrorMessage: err.Error()}, nil
	}
	if msg.CustomerID <= 0 {
		return &domain.SaveResult{Success: false, ErrorMessage: "missing customer id"}, nil
	}
	if msg.UTCDateTicks <= 0 {
		return &domain.SaveResult{Success: false, ErrorMessage: "missing date"}, nil
	}
	if msg.Channel < domain.ChannelInPerson || msg.Channel > domain.ChannelByEmail {
		return &domain.SaveResult{Success: false, ErrorMessage: fmt.Sprintf("invalid channel %d", msg.Channel)}, nil
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (customer_id, utc_date_ticks, text, person_of_customer, channel)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.CustomerID, msg.UTCDateTicks, msg.Text, msg.PersonOfCustomer, int(msg.Channel),
	)
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	id, _ := res.LastInsertId()

	s.logger.Info("contact stored",
		zap.Int64("id", id),
		zap.Int("customer_id", msg.CustomerID),
	)
	return &domain.SaveResult{Success: true}, nil
}

// List returns the contacts of a customer, oldest meeting first.
func (s *ContactStore) List(ctx context.Context, customerID int) ([]StoredContact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_id, utc_date_ticks, text, person_of_customer, channel, created_at
		 FROM contacts WHERE customer_id = ? ORDER BY utc_date_ticks, id`, customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []StoredContact
	for rows.Next() {
		var c StoredContact
		var channel int
		if err := rows.Scan(&c.ID, &c.CustomerID, &c.UTCDateTicks, &c.Text, &c.PersonOfCustomer, &channel, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		c.Channel = domain.Channel(channel)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Ping checks the database connection.
func (s *ContactStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database.
func (s *ContactStore) Close() error {
	return s.db.Close()
}
