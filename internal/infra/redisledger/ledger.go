package redisledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"zkcred/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "zkcred:nullifier:"
	heightKey     = "height"
)

// Ledger keeps consumed nullifiers in redis. Each reservation runs as a
// single Lua script, so the existence check and the write cannot interleave
// with another reservation of the same value. All keys of one ledger live
// under one prefix and are expected on a single node.
type Ledger struct {
	client redis.Cmdable
	prefix string
	clock  func() time.Time
}

type Option func(*Ledger)

func WithPrefix(prefix string) Option {
	return func(l *Ledger) { l.prefix = prefix }
}

func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) { l.clock = clock }
}

func New(client redis.Cmdable, opts ...Option) (*Ledger, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	l := &Ledger{client: client, prefix: defaultPrefix, clock: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

var reserveScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return {0, 0}
end
local height = redis.call("INCR", KEYS[2])
redis.call("HSET", KEYS[1], "id", ARGV[1], "circuit_id", ARGV[2], "context_id", ARGV[3], "height", height, "reserved_at", ARGV[4])
redis.call("SADD", KEYS[3], KEYS[1])
return {1, height}
`)

var sweepScript = redis.NewScript(`
local members = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, key in ipairs(members) do
  removed = removed + redis.call("DEL", key)
end
redis.call("DEL", KEYS[1])
return removed
`)

func (l *Ledger) CheckAndReserve(ctx context.Context, n domain.Nullifier) (domain.LedgerReceipt, error) {
	receipt := domain.LedgerReceipt{
		ID:         uuid.NewString(),
		Nullifier:  n.Value,
		CircuitID:  n.CircuitID,
		ContextID:  n.ContextID,
		ReservedAt: l.clock().UTC(),
	}
	keys := []string{l.valueKey(n.Value), l.prefix + heightKey, l.circuitKey(n.CircuitID)}
	result, err := reserveScript.Run(ctx, l.client, keys,
		receipt.ID, n.CircuitID, n.ContextID, receipt.ReservedAt.Format(time.RFC3339Nano)).Result()
	if err != nil {
		return domain.LedgerReceipt{}, fmt.Errorf("redis reserve: %w", err)
	}
	values, ok := result.([]any)
	if !ok || len(values) != 2 {
		return domain.LedgerReceipt{}, errors.New("unexpected redis reserve response")
	}
	stored, _ := values[0].(int64)
	if stored == 0 {
		return domain.LedgerReceipt{}, domain.ErrAlreadyUsed
	}
	receipt.Height, ok = values[1].(int64)
	if !ok {
		return domain.LedgerReceipt{}, errors.New("invalid redis height response")
	}
	return receipt, nil
}

func (l *Ledger) IsConsumed(ctx context.Context, value domain.FieldElement) (bool, error) {
	n, err := l.client.Exists(ctx, l.valueKey(value)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n == 1, nil
}

// Receipt reads back the reservation of value.
func (l *Ledger) Receipt(ctx context.Context, value domain.FieldElement) (domain.LedgerReceipt, error) {
	fields, err := l.client.HGetAll(ctx, l.valueKey(value)).Result()
	if err != nil {
		return domain.LedgerReceipt{}, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return domain.LedgerReceipt{}, domain.ErrNotFound
	}
	height, err := strconv.ParseInt(fields["height"], 10, 64)
	if err != nil {
		return domain.LedgerReceipt{}, fmt.Errorf("redis receipt height: %w", err)
	}
	reservedAt, err := time.Parse(time.RFC3339Nano, fields["reserved_at"])
	if err != nil {
		return domain.LedgerReceipt{}, fmt.Errorf("redis receipt time: %w", err)
	}
	return domain.LedgerReceipt{
		ID:         fields["id"],
		Nullifier:  value,
		CircuitID:  fields["circuit_id"],
		ContextID:  fields["context_id"],
		Height:     height,
		ReservedAt: reservedAt,
	}, nil
}

func (l *Ledger) Sweep(ctx context.Context, circuitID string) (int64, error) {
	result, err := sweepScript.Run(ctx, l.client, []string{l.circuitKey(circuitID)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis sweep: %w", err)
	}
	return result, nil
}

func (l *Ledger) valueKey(value domain.FieldElement) string {
	return l.prefix + "v:" + value.Hex()
}

func (l *Ledger) circuitKey(circuitID string) string {
	return l.prefix + "c:" + circuitID
}

var _ domain.NullifierLedger = (*Ledger)(nil)
