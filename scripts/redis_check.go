// Проверка Redis перед запуском: все операции, которые использует iVisit
// (кэш пропусков, счетчик попыток, блокировка фоновых задач)
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/frontandrew/ivisit/internal/pkg/attempts"
	"github.com/frontandrew/ivisit/internal/pkg/redis"
	"github.com/google/uuid"
)

func main() {
	fmt.Println("=========================================")
	fmt.Println("iVisit Redis check")
	fmt.Println("=========================================")
	fmt.Println()

	client, err := redis.NewClient(redis.Config{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	if err != nil {
		fail("connect", err)
	}
	defer client.Close()

	fmt.Println("✅ Connected to Redis")
	fmt.Println()

	ctx := context.Background()
	prefix := "ivisit:check:" + uuid.NewString() + ":"

	// Step 1: кэш UID -> ID пропуска
	fmt.Println("Step 1: pass cache")
	cacheKey := prefix + "pass:uid:865A4BA6"
	passID := uuid.NewString()
	if err := client.Set(ctx, cacheKey, passID, time.Minute); err != nil {
		fail("SET", err)
	}
	cached, err := client.Get(ctx, cacheKey)
	if err != nil {
		fail("GET", err)
	}
	if cached != passID {
		fail("GET", fmt.Errorf("got %q, want %q", cached, passID))
	}
	fmt.Printf("✅ %s = %s\n", cacheKey, cached)
	fmt.Println()

	// Step 2: счетчик неудачных попыток через attempts.Counter
	fmt.Println("Step 2: auth attempt counter")
	counter := attempts.New(client, prefix+"auth:", 2, 10*time.Second)
	for i := 0; i < 2; i++ {
		if _, err := counter.Fail(ctx, "127.0.0.1"); err != nil {
			fail("INCR", err)
		}
	}
	blocked, err := counter.Blocked(ctx, "127.0.0.1")
	if err != nil {
		fail("Blocked", err)
	}
	if !blocked {
		fail("Blocked", fmt.Errorf("counter should block after the limit"))
	}
	if err := counter.Reset(ctx, "127.0.0.1"); err != nil {
		fail("Reset", err)
	}
	fmt.Println("✅ Counter blocks after limit and resets")
	fmt.Println()

	// Step 3: блокировка фоновой задачи
	fmt.Println("Step 3: job lock")
	lockKey := prefix + "job:overstay"
	token := uuid.NewString()
	ok, err := client.SetNX(ctx, lockKey, token, 10*time.Second)
	if err != nil || !ok {
		fail("SETNX", fmt.Errorf("acquired=%v err=%v", ok, err))
	}
	ok, err = client.SetNX(ctx, lockKey, uuid.NewString(), 10*time.Second)
	if err != nil || ok {
		fail("SETNX", fmt.Errorf("second acquire should fail: acquired=%v err=%v", ok, err))
	}
	released, err := client.CompareAndDelete(ctx, lockKey, "foreign-token")
	if err != nil || released {
		fail("CompareAndDelete", fmt.Errorf("foreign token released the lock: %v %v", released, err))
	}
	released, err = client.CompareAndDelete(ctx, lockKey, token)
	if err != nil || !released {
		fail("CompareAndDelete", fmt.Errorf("owner could not release: %v %v", released, err))
	}
	fmt.Println("✅ Lock is exclusive and released only by its owner")
	fmt.Println()

	if err := client.Del(ctx, cacheKey); err != nil {
		fail("DEL", err)
	}

	fmt.Println("=========================================")
	fmt.Println("✅ Redis is ready for iVisit")
	fmt.Println("=========================================")
}

func fail(step string, err error) {
	fmt.Printf("❌ %s failed: %v\n", step, err)
	os.Exit(1)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
