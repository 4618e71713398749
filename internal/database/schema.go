package database

import (
	"database/sql"
	"fmt"
)

const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

CREATE TABLE IF NOT EXISTS customers (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    name TEXT NOT NULL,
    phone TEXT NOT NULL UNIQUE,
    wilaya TEXT DEFAULT '',
    commune TEXT DEFAULT '',
    order_count INT NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS orders (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    external_id TEXT,
    reference TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL,
    store_identifier TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    shipping_status TEXT,
    total NUMERIC(12,2) DEFAULT 0,
    items JSONB,
    customer_id UUID REFERENCES customers(id),
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_external_id
    ON orders(source, store_identifier, external_id)
    WHERE external_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
CREATE INDEX IF NOT EXISTS idx_orders_store ON orders(store_identifier);

CREATE TABLE IF NOT EXISTS order_confirmations (
    external_order_id TEXT PRIMARY KEY,
    order_id UUID REFERENCES orders(id),
    confirmer_id TEXT,
    confirmer_name TEXT,
    confirmation_state TEXT NOT NULL DEFAULT '',
    order_state TEXT NOT NULL DEFAULT '',
    confirmed_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS webhook_configurations (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    ecomanager_webhook_id TEXT NOT NULL UNIQUE,
    webhook_secret TEXT NOT NULL,
    store_identifier TEXT NOT NULL,
    last_triggered_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS webhook_events (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    source TEXT NOT NULL,
    event_type TEXT NOT NULL,
    payload BYTEA,
    processed BOOLEAN NOT NULL DEFAULT FALSE,
    error TEXT,
    order_id UUID REFERENCES orders(id),
    created_at TIMESTAMPTZ DEFAULT NOW(),
    processed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_webhook_events_created_at ON webhook_events(created_at);
CREATE INDEX IF NOT EXISTS idx_webhook_events_processed ON webhook_events(processed);

CREATE TABLE IF NOT EXISTS api_configurations (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    store_name TEXT NOT NULL,
    store_identifier TEXT NOT NULL UNIQUE,
    api_token TEXT NOT NULL,
    base_url TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    request_count INT NOT NULL DEFAULT 0,
    last_used_at TIMESTAMPTZ,
    last_synced_order_id TEXT,
    synced_count INT NOT NULL DEFAULT 0
);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}
