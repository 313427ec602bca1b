package billing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zenportal/backend/internal/config"
)

// fakeBillingDB models the two tables ProcessEvent touches. Writes buffer in
// the transaction and only land on Commit, so rollback paths are observable.
type fakeBillingDB struct {
	events   map[string]string // event id -> recorded status
	subs     int               // committed subscription inserts
	upgrades int               // committed workspace tier updates
}

func newFakeBillingDB() *fakeBillingDB {
	return &fakeBillingDB{events: map[string]string{}}
}

func (d *fakeBillingDB) Begin(context.Context) (pgx.Tx, error) {
	return &fakeBillingTx{db: d, pendingEvents: map[string]string{}}, nil
}

func (d *fakeBillingDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected exec outside tx")
}

func (d *fakeBillingDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected query outside tx")
}

func (d *fakeBillingDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{errors.New("unexpected query outside tx")}
}

type fakeBillingTx struct {
	pgx.Tx
	db *fakeBillingDB

	pendingEvents   map[string]string
	pendingSubs     int
	pendingUpgrades int
}

func (t *fakeBillingTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if strings.Contains(sql, "FROM webhook_events") {
		id := args[0].(string)
		if _, ok := t.db.events[id]; ok {
			return idRow{id}
		}
		return errRow{pgx.ErrNoRows}
	}
	return errRow{errors.New("unexpected query: " + sql)}
}

func (t *fakeBillingTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "INSERT INTO webhook_events"):
		t.pendingEvents[args[0].(string)] = args[2].(string)
	case strings.Contains(sql, "INSERT INTO subscriptions"):
		t.pendingSubs++
	case strings.Contains(sql, "UPDATE workspaces"):
		t.pendingUpgrades++
	default:
		return pgconn.CommandTag{}, errors.New("unexpected exec: " + sql)
	}
	return pgconn.CommandTag{}, nil
}

func (t *fakeBillingTx) Commit(context.Context) error {
	for id, status := range t.pendingEvents {
		t.db.events[id] = status
	}
	t.db.subs += t.pendingSubs
	t.db.upgrades += t.pendingUpgrades
	return nil
}

func (t *fakeBillingTx) Rollback(context.Context) error { return nil }

type idRow struct{ id string }

func (r idRow) Scan(dest ...any) error {
	*dest[0].(*string) = r.id
	return nil
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

func checkoutEvent(workspaceID string) *Event {
	return &Event{
		ID:   "evt_1",
		Type: EventCheckoutPaid,
		CheckoutPaid: &CheckoutPaidEvent{
			SessionID:   "cs_1",
			WorkspaceID: workspaceID,
			CustomerID:  "cus_1",
		},
	}
}

func TestProcessEventAppliesCheckoutOnce(t *testing.T) {
	db := newFakeBillingDB()
	svc := NewService(db, nil, config.PayMongoConfig{}, "")

	err := svc.ProcessEvent(context.Background(), checkoutEvent(uuid.NewString()))
	require.NoError(t, err)
	assert.Equal(t, 1, db.subs)
	assert.Equal(t, 1, db.upgrades)
	assert.Equal(t, "processed", db.events["evt_1"])
}

func TestProcessEventReplayMutatesNothing(t *testing.T) {
	db := newFakeBillingDB()
	svc := NewService(db, nil, config.PayMongoConfig{}, "")
	ev := checkoutEvent(uuid.NewString())

	require.NoError(t, svc.ProcessEvent(context.Background(), ev))
	err := svc.ProcessEvent(context.Background(), ev)

	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Equal(t, 1, db.upgrades, "redelivery must not upgrade twice")
	assert.Len(t, db.events, 1, "redelivery must not add a second event row")
}

func TestProcessEventMissingWorkspaceMetadata(t *testing.T) {
	// A signature-valid paid event can arrive with no workspace id in its
	// metadata. It must be recorded and acknowledged, not retried forever.
	db := newFakeBillingDB()
	svc := NewService(db, nil, config.PayMongoConfig{}, "")

	err := svc.ProcessEvent(context.Background(), checkoutEvent(""))
	require.NoError(t, err)
	assert.Equal(t, 0, db.subs)
	assert.Equal(t, 0, db.upgrades)
	assert.Equal(t, "skipped", db.events["evt_1"])

	err = svc.ProcessEvent(context.Background(), checkoutEvent(""))
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestProcessEventUnrecognizedTypeAcknowledged(t *testing.T) {
	db := newFakeBillingDB()
	svc := NewService(db, nil, config.PayMongoConfig{}, "")

	err := svc.ProcessEvent(context.Background(), &Event{ID: "evt_2", Type: "payout.paid", Unrecognized: true})
	require.NoError(t, err)
	assert.Equal(t, 0, db.upgrades)
	assert.Equal(t, "processed", db.events["evt_2"])
}
