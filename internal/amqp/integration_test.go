//go:build integration

package amqp

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"mmms/internal/notify"
)

var brokerURL string

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not construct pool: %s\n", err)
		os.Exit(1)
	}
	if err := pool.Client.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "Could not connect to Docker: %s\n", err)
		os.Exit(1)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "rabbitmq",
		Tag:        "3-alpine",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not start rabbitmq: %s\n", err)
		os.Exit(1)
	}
	_ = resource.Expire(120)

	brokerURL = fmt.Sprintf("amqp://guest:guest@%s/", resource.GetHostPort("5672/tcp"))
	pool.MaxWait = 90 * time.Second
	if err := pool.Retry(func() error {
		c, err := NewClient(brokerURL, "mmms_test", "notifications_test", testLogger())
		if err != nil {
			return err
		}
		return c.Close()
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Could not connect to rabbitmq: %s\n", err)
		_ = pool.Purge(resource)
		os.Exit(1)
	}

	code := m.Run()
	if err := pool.Purge(resource); err != nil {
		fmt.Fprintf(os.Stderr, "Could not purge resource: %s\n", err)
	}
	os.Exit(code)
}

func TestPublishConsumeRoundTrip(t *testing.T) {
	client, err := NewClient(brokerURL, "mmms_test", "notifications_test", testLogger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.Notify(ctx, alert()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	received := make(chan notify.Notification, 1)
	attempts := 0
	go func() {
		_ = client.Consume(ctx, func(_ context.Context, n notify.Notification) error {
			attempts++
			if attempts == 1 {
				return fmt.Errorf("transient failure")
			}
			received <- n
			return nil
		})
	}()

	select {
	case n := <-received:
		if n.Owner != alert().Owner {
			t.Errorf("owner = %q", n.Owner)
		}
		if attempts != 2 {
			t.Errorf("expected a requeued redelivery, got %d attempts", attempts)
		}
	case <-ctx.Done():
		t.Fatal("notification not delivered")
	}
}
