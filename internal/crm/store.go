// Package crm implements the customer-record backend the fraud specialists
// consult through MCP lookup tools.
package crm

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite customer database.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database with foreign keys on, creates the schema
// and seeds demo data when the customers table is empty.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open crm db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.seedIfEmpty(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrate crm schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS customers (
	id             INTEGER PRIMARY KEY,
	name           TEXT NOT NULL,
	email          TEXT NOT NULL,
	phone          TEXT NOT NULL,
	address        TEXT NOT NULL,
	account_status TEXT NOT NULL DEFAULT 'active',
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS subscriptions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	customer_id   INTEGER NOT NULL REFERENCES customers(id),
	plan_name     TEXT NOT NULL,
	monthly_cost  REAL NOT NULL,
	data_limit_gb REAL NOT NULL,
	status        TEXT NOT NULL DEFAULT 'active',
	started_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS data_usage (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	customer_id INTEGER NOT NULL REFERENCES customers(id),
	day         TEXT NOT NULL,
	used_gb     REAL NOT NULL,
	roaming_gb  REAL NOT NULL DEFAULT 0,
	country     TEXT NOT NULL DEFAULT 'US'
);

CREATE TABLE IF NOT EXISTS charges (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	customer_id INTEGER NOT NULL REFERENCES customers(id),
	charged_at  TEXT NOT NULL,
	amount      REAL NOT NULL,
	description TEXT NOT NULL,
	disputed    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS orders (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	customer_id INTEGER NOT NULL REFERENCES customers(id),
	ordered_at  TEXT NOT NULL,
	item        TEXT NOT NULL,
	amount      REAL NOT NULL,
	status      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS security_logs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	customer_id INTEGER NOT NULL REFERENCES customers(id),
	logged_at   TEXT NOT NULL,
	event       TEXT NOT NULL,
	ip_address  TEXT NOT NULL,
	location    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS knowledge_base (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	topic   TEXT NOT NULL,
	title   TEXT NOT NULL,
	content TEXT NOT NULL
);
`

// Customer is the CRM customer record.
type Customer struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	AccountStatus string `json:"account_status"`
	CreatedAt     string `json:"created_at"`
}

// Subscription is one service plan held by a customer.
type Subscription struct {
	ID          int     `json:"id"`
	CustomerID  int     `json:"customer_id"`
	PlanName    string  `json:"plan_name"`
	MonthlyCost float64 `json:"monthly_cost"`
	DataLimitGB float64 `json:"data_limit_gb"`
	Status      string  `json:"status"`
	StartedAt   string  `json:"started_at"`
}

// UsageDay is one day of metered data usage.
type UsageDay struct {
	Day       string  `json:"day"`
	UsedGB    float64 `json:"used_gb"`
	RoamingGB float64 `json:"roaming_gb"`
	Country   string  `json:"country"`
}

// UsageSummary is the data-usage tool response.
type UsageSummary struct {
	CustomerID     int        `json:"customer_id"`
	TotalGB        float64    `json:"total_gb"`
	TotalRoamingGB float64    `json:"total_roaming_gb"`
	Days           []UsageDay `json:"days"`
}

// Charge is one billed line item.
type Charge struct {
	ID          int     `json:"id"`
	ChargedAt   string  `json:"charged_at"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Disputed    bool    `json:"disputed"`
}

// BillingSummary is the billing tool response.
type BillingSummary struct {
	CustomerID     int      `json:"customer_id"`
	TotalAmount    float64  `json:"total_amount"`
	DisputedAmount float64  `json:"disputed_amount"`
	Charges        []Charge `json:"charges"`
}

// Order is one purchase a customer made.
type Order struct {
	ID        int     `json:"id"`
	OrderedAt string  `json:"ordered_at"`
	Item      string  `json:"item"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
}

// SecurityLog is one authentication or account event.
type SecurityLog struct {
	ID        int    `json:"id"`
	LoggedAt  string `json:"logged_at"`
	Event     string `json:"event"`
	IPAddress string `json:"ip_address"`
	Location  string `json:"location"`
}

// Article is one knowledge-base document.
type Article struct {
	ID      int    `json:"id"`
	Topic   string `json:"topic"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ErrNotFound is returned when a customer does not exist.
var ErrNotFound = sql.ErrNoRows

// GetCustomer returns the customer record for id.
func (s *Store) GetCustomer(ctx context.Context, id int) (*Customer, error) {
	var c Customer
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone, address, account_status, created_at
		 FROM customers WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.AccountStatus, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetSubscriptions returns all subscriptions held by the customer.
func (s *Store) GetSubscriptions(ctx context.Context, customerID int) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_id, plan_name, monthly_cost, data_limit_gb, status, started_at
		 FROM subscriptions WHERE customer_id = ? ORDER BY id`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.CustomerID, &sub.PlanName, &sub.MonthlyCost,
			&sub.DataLimitGB, &sub.Status, &sub.StartedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// GetDataUsage returns per-day usage plus totals, newest first.
func (s *Store) GetDataUsage(ctx context.Context, customerID int) (*UsageSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, used_gb, roaming_gb, country
		 FROM data_usage WHERE customer_id = ? ORDER BY day DESC LIMIT 30`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sum := &UsageSummary{CustomerID: customerID}
	for rows.Next() {
		var d UsageDay
		if err := rows.Scan(&d.Day, &d.UsedGB, &d.RoamingGB, &d.Country); err != nil {
			return nil, err
		}
		sum.TotalGB += d.UsedGB
		sum.TotalRoamingGB += d.RoamingGB
		sum.Days = append(sum.Days, d)
	}
	return sum, rows.Err()
}

// GetBillingSummary returns recent charges plus totals, newest first.
func (s *Store) GetBillingSummary(ctx context.Context, customerID int) (*BillingSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, charged_at, amount, description, disputed
		 FROM charges WHERE customer_id = ? ORDER BY charged_at DESC LIMIT 50`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sum := &BillingSummary{CustomerID: customerID}
	for rows.Next() {
		var c Charge
		if err := rows.Scan(&c.ID, &c.ChargedAt, &c.Amount, &c.Description, &c.Disputed); err != nil {
			return nil, err
		}
		sum.TotalAmount += c.Amount
		if c.Disputed {
			sum.DisputedAmount += c.Amount
		}
		sum.Charges = append(sum.Charges, c)
	}
	return sum, rows.Err()
}

// GetOrders returns the customer's orders, newest first.
func (s *Store) GetOrders(ctx context.Context, customerID int) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ordered_at, item, amount, status
		 FROM orders WHERE customer_id = ? ORDER BY ordered_at DESC LIMIT 50`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.OrderedAt, &o.Item, &o.Amount, &o.Status); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetSecurityLogs returns the customer's security events, newest first.
func (s *Store) GetSecurityLogs(ctx context.Context, customerID int) ([]SecurityLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, logged_at, event, ip_address, location
		 FROM security_logs WHERE customer_id = ? ORDER BY logged_at DESC LIMIT 50`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []SecurityLog
	for rows.Next() {
		var l SecurityLog
		if err := rows.Scan(&l.ID, &l.LoggedAt, &l.Event, &l.IPAddress, &l.Location); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// SearchKnowledgeBase returns articles whose topic, title or content match
// the query substring.
func (s *Store) SearchKnowledgeBase(ctx context.Context, query string) ([]Article, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, title, content FROM knowledge_base
		 WHERE topic LIKE ? OR title LIKE ? OR content LIKE ?
		 ORDER BY id LIMIT 10`, pattern, pattern, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.Topic, &a.Title, &a.Content); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// SetAccountStatus updates a customer's account_status.
func (s *Store) SetAccountStatus(ctx context.Context, customerID int, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE customers SET account_status = ? WHERE id = ?`, status, customerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
