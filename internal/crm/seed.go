package crm

import "fmt"

// seedIfEmpty loads demo customer data the first time the database is created.
// Customer 101 is an ordinary account, 102 shows a roaming spike abroad, and
// 103 carries disputed premium charges.
func (s *Store) seedIfEmpty() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM customers`).Scan(&count); err != nil {
		return fmt.Errorf("seed check: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range seedStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	return tx.Commit()
}

var seedStatements = []string{
	`INSERT INTO customers (id, name, email, phone, address, account_status, created_at) VALUES
	(101, 'Ana Morales', 'ana.morales@example.com', '+1-555-0101', '12 Pine St, Austin, TX', 'active', '2022-03-14'),
	(102, 'Jordan Blake', 'jordan.blake@example.com', '+1-555-0102', '88 Lake Ave, Denver, CO', 'active', '2021-11-02'),
	(103, 'Priya Nair', 'priya.nair@example.com', '+1-555-0103', '450 Ocean Dr, Miami, FL', 'active', '2023-06-21')`,

	`INSERT INTO subscriptions (customer_id, plan_name, monthly_cost, data_limit_gb, status, started_at) VALUES
	(101, 'Mobile Basic', 35.00, 10, 'active', '2022-03-14'),
	(102, 'Mobile Unlimited', 75.00, 100, 'active', '2021-11-02'),
	(102, 'Intl Roaming Pack', 15.00, 5, 'active', '2024-01-10'),
	(103, 'Mobile Plus', 55.00, 40, 'active', '2023-06-21')`,

	`INSERT INTO data_usage (customer_id, day, used_gb, roaming_gb, country) VALUES
	(101, '2026-08-20', 0.4, 0, 'US'),
	(101, '2026-08-21', 0.3, 0, 'US'),
	(101, '2026-08-22', 0.5, 0, 'US'),
	(102, '2026-08-18', 2.1, 0, 'US'),
	(102, '2026-08-19', 1.8, 0, 'US'),
	(102, '2026-08-20', 14.6, 14.6, 'RO'),
	(102, '2026-08-21', 18.2, 18.2, 'RO'),
	(102, '2026-08-22', 21.9, 21.9, 'RO'),
	(103, '2026-08-20', 1.2, 0, 'US'),
	(103, '2026-08-21', 1.1, 0, 'US'),
	(103, '2026-08-22', 0.9, 0, 'US')`,

	`INSERT INTO charges (customer_id, charged_at, amount, description, disputed) VALUES
	(101, '2026-08-01', 35.00, 'Monthly plan - Mobile Basic', 0),
	(102, '2026-08-01', 75.00, 'Monthly plan - Mobile Unlimited', 0),
	(102, '2026-08-21', 240.00, 'International roaming overage', 0),
	(102, '2026-08-22', 310.00, 'International roaming overage', 0),
	(103, '2026-08-01', 55.00, 'Monthly plan - Mobile Plus', 0),
	(103, '2026-08-19', 89.99, 'Premium SMS subscription', 1),
	(103, '2026-08-20', 89.99, 'Premium SMS subscription', 1),
	(103, '2026-08-21', 129.99, 'Third-party content purchase', 1)`,

	`INSERT INTO orders (customer_id, ordered_at, item, amount, status) VALUES
	(101, '2026-07-02', 'SIM replacement', 10.00, 'delivered'),
	(102, '2026-08-20', 'eSIM activation', 0.00, 'completed'),
	(103, '2026-08-18', 'Handset upgrade - financed', 899.00, 'pending')`,

	`INSERT INTO security_logs (customer_id, logged_at, event, ip_address, location) VALUES
	(101, '2026-08-22 09:14:00', 'login_success', '73.42.18.9', 'Austin, US'),
	(102, '2026-08-19 22:41:00', 'login_success', '73.110.4.22', 'Denver, US'),
	(102, '2026-08-20 03:02:00', 'login_success', '188.27.130.5', 'Bucharest, RO'),
	(102, '2026-08-20 03:05:00', 'sim_swap_requested', '188.27.130.5', 'Bucharest, RO'),
	(103, '2026-08-19 14:30:00', 'password_reset', '172.58.100.7', 'Miami, US'),
	(103, '2026-08-19 14:32:00', 'login_failed', '45.134.22.88', 'Unknown'),
	(103, '2026-08-19 14:33:00', 'login_failed', '45.134.22.88', 'Unknown')`,

	`INSERT INTO knowledge_base (topic, title, content) VALUES
	('roaming', 'Roaming overage policy', 'Customers on Unlimited plans are billed per-GB for roaming beyond the Intl Roaming Pack allowance. Spikes above 10GB/day abroad trigger a fraud review.'),
	('billing', 'Premium SMS disputes', 'Disputed premium SMS charges may be refunded once per 12 months. Repeated third-party content purchases on a new device warrant escalation.'),
	('security', 'SIM swap handling', 'A sim_swap_requested event from an unfamiliar location must be treated as account-takeover risk until the customer confirms by callback.'),
	('account', 'Account lock and unlock', 'Locked accounts block all purchases and SIM changes. Unlock requires identity verification by a support agent.')`,
}
