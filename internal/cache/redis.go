package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	codeKeyPrefix   = "partyquiz:code:"
	ticketKeyPrefix = "partyquiz:rejoin:"

	opTimeout = 2 * time.Second
)

// Redis implements Cache on go-redis. Code reservations use SETNX so two
// engine replicas can never mint the same live code; rejoin tickets use
// GETDEL so redemption is single-use even across replicas.
type Redis struct {
	client *redis.Client
}

// NewRedis connects a Redis-backed cache
func NewRedis(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// ReserveCode claims a code via SETNX with TTL
func (r *Redis) ReserveCode(code string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	ok, err := r.client.SetNX(ctx, codeKeyPrefix+code, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve code: %v", err)
	}
	return ok, nil
}

// ReleaseCode frees a code reservation
func (r *Redis) ReleaseCode(code string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := r.client.Del(ctx, codeKeyPrefix+code).Err(); err != nil {
		return fmt.Errorf("failed to release code: %v", err)
	}
	return nil
}

// StoreRejoinTicket stores a token as JSON with TTL
func (r *Redis) StoreRejoinTicket(token string, ticket RejoinTicket, ttl time.Duration) error {
	data, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("failed to marshal rejoin ticket: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := r.client.Set(ctx, ticketKeyPrefix+token, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store rejoin ticket: %v", err)
	}
	return nil
}

// ConsumeRejoinTicket redeems a token with GETDEL
func (r *Redis) ConsumeRejoinTicket(token string) (*RejoinTicket, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := r.client.GetDel(ctx, ticketKeyPrefix+token).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume rejoin ticket: %v", err)
	}

	var ticket RejoinTicket
	if err := json.Unmarshal([]byte(data), &ticket); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rejoin ticket: %v", err)
	}
	return &ticket, nil
}

// Close shuts the client down
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Cache = (*Redis)(nil)
