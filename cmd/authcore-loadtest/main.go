package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/eastwyck/authcore"
	"github.com/eastwyck/authcore/credstore"
	"github.com/eastwyck/authcore/password"
)

func main() {
	var (
		accounts    = flag.Int("accounts", 1000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (verify + session)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "authcore-lt", "credential store key prefix")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  *redis.Client
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := credstore.NewRedis(client, *prefix)
	if err := store.Install(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "install failed: %v\n", err)
		os.Exit(1)
	}

	// Floor-strength argon2 keeps the phases measuring store and registry
	// behavior rather than key derivation.
	hasher, err := password.NewArgon2id(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		KeyLength:   16,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "hasher setup failed: %v\n", err)
		os.Exit(1)
	}

	cfg := authcore.Config{
		Sessions:  authcore.SessionConfig{MaxSessions: -1, AuthzCacheSize: 64},
		LoginFlow: authcore.LoginFlowConfig{MaxAttempts: 3},
		Directory: authcore.DirectoryConfig{SaltLength: 16},
		Audit:     authcore.AuditConfig{Enabled: false},
		Metrics:   authcore.MetricsConfig{Enabled: true},
	}

	facade, err := authcore.New().
		WithConfig(cfg).
		WithStore(store).
		WithHasher(hasher).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = facade.Close() }()

	usernames := make([]string, *accounts)
	fmt.Printf("seeding %d accounts...\n", *accounts)
	startSeed := time.Now()
	for i := 0; i < *accounts; i++ {
		usernames[i] = fmt.Sprintf("user-%d", i)
		created, err := facade.CreateAccount(ctx, usernames[i], passwordFor(i), authcore.RoleBasic)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
		if !created {
			fmt.Fprintf(os.Stderr, "seed collision on %s; use a fresh prefix\n", usernames[i])
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	directory, err := facade.Directory()
	if err != nil {
		fmt.Fprintf(os.Stderr, "directory unavailable: %v\n", err)
		os.Exit(1)
	}
	registry, err := facade.Sessions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "registry unavailable: %v\n", err)
		os.Exit(1)
	}

	verifyStats := runVerifyPhase(ctx, directory, usernames, *ops, *concurrency)
	sessionStats := runSessionPhase(ctx, registry, usernames, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("verify", verifyStats)
	printStats("session", sessionStats)
}

func runVerifyPhase(ctx context.Context, directory *authcore.AccountDirectory, usernames []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(usernames))
				t0 := time.Now()
				ok, err := directory.CheckPassword(ctx, usernames[idx], passwordFor(idx))
				d := time.Since(t0)
				if err != nil || !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runSessionPhase(ctx context.Context, registry *authcore.SessionRegistry, usernames []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(usernames))
				t0 := time.Now()
				admitted, err := registry.Login(ctx, usernames[idx], true)
				if admitted {
					registry.Logout(ctx, usernames[idx], true)
				}
				d := time.Since(t0)
				// Admission losses are expected when workers race on the
				// same username; only hard errors count as failures.
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func passwordFor(i int) []byte {
	return []byte(fmt.Sprintf("pw-%d-correct-horse", i))
}
