package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/crowsupport/chatbridge/internal/config"
	"github.com/crowsupport/chatbridge/internal/conversation"
	"github.com/crowsupport/chatbridge/internal/db"
	"github.com/crowsupport/chatbridge/internal/obs"
	"github.com/crowsupport/chatbridge/internal/relay"
	"github.com/crowsupport/chatbridge/internal/store/boltstore"
	"github.com/crowsupport/chatbridge/internal/store/rabbitmq"
	"github.com/crowsupport/chatbridge/internal/store/redisstore"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()
	logger := obs.NewLogger(cfg.Env)

	gdb := db.Connect(cfg.DBDSN)
	repo := relay.NewRepo(gdb)

	sessionSlot := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionSlotTTL)
	defer sessionSlot.Close()

	durableSlot, err := boltstore.Open(cfg.BoltPath)
	if err != nil {
		log.Fatalf("bolt open: %v", err)
	}
	defer durableSlot.Close()

	store := conversation.NewStore(sessionSlot, durableSlot, logger)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Jobs drained during shutdown still need a live context, so the
	// workers get their own instead of the signal-cancelled one.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	logger.Info("relay worker started", "queue", cfg.RabbitQueue, "concurrency", concurrency)

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m rabbitmq.InboundMessage
				if err := json.Unmarshal(d.Body, &m); err != nil || m.PSID == "" {
					logger.Warn("bad inbound message", "worker", workerID, "err", err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleInbound(workCtx, store, repo, m); err != nil {
					logger.Warn("inbound relay failed", "worker", workerID, "psid", m.PSID, "cost", time.Since(start), "err", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					logger.Warn("ack failed", "worker", workerID, "psid", m.PSID, "err", err)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("relay worker shutting down")
			close(jobs)
			drainGuard := time.AfterFunc(30*time.Second, cancelWork)
			wg.Wait()
			drainGuard.Stop()
			return

		case d, ok := <-msgs:
			if !ok {
				logger.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

// handleInbound appends the Messenger message to the visitor's capture
// conversation and archives the relay crossing.
func handleInbound(ctx context.Context, store *conversation.Store, repo *relay.Repo, m rabbitmq.InboundMessage) error {
	key := "fb:" + m.PageID + ":" + m.PSID

	conv := store.Append(ctx, key, m.Text, conversation.SenderCustomer, map[string]any{
		"source":  "messenger",
		"mid":     m.MessageID,
		"page_id": m.PageID,
	})

	return repo.ArchiveMessage(ctx, &relay.RelayedMessage{
		SessionID: conv.Meta.SessionID,
		PageID:    m.PageID,
		PSID:      m.PSID,
		Direction: "inbound",
		Text:      m.Text,
		MessageID: m.MessageID,
	})
}
