// Package publish talks to the platform that posts actually go out on.
//
// The dispatch loop only depends on the Publisher interface; the concrete
// Instagram client lives in instagram.go and is wire-level plumbing, not
// part of the scheduling core.
package publish

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Sean-McConnachie/delayedgram/internal/queue"
	"github.com/Sean-McConnachie/delayedgram/pkg/logx"
)

// Publisher publishes one post. Implementations authenticate per attempt,
// resolve the location when both coordinates are set, and pick single-image
// or album publishing based on the image count.
type Publisher interface {
	Publish(ctx context.Context, post queue.Post, imagePaths []string) error
}

// Environment variables holding the platform credentials.
const (
	EnvUsername = "INSTAGRAM_USERNAME"
	EnvPassword = "INSTAGRAM_PASSWORD"
)

type Credentials struct {
	Username string
	Password string
}

// CredentialsFromEnv reads the platform credentials from the environment.
// The password is base64-encoded; that is obfuscation so the raw literal
// doesn't show up in environment dumps, not encryption.
func CredentialsFromEnv() (Credentials, error) {
	user := os.Getenv(EnvUsername)
	if user == "" {
		return Credentials{}, fmt.Errorf("%s is not set", EnvUsername)
	}
	enc := os.Getenv(EnvPassword)
	if enc == "" {
		return Credentials{}, fmt.Errorf("%s is not set", EnvPassword)
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return Credentials{}, fmt.Errorf("%s is not valid base64: %w", EnvPassword, err)
	}
	return Credentials{Username: user, Password: string(raw)}, nil
}

// envPublisher builds the real client lazily, on the first publish attempt.
// Cycles that never reach publishing (empty queue, not due, invalid head)
// must work without credentials in the environment.
type envPublisher struct {
	timeout time.Duration
	rpm     int
	log     logx.Logger

	mu     sync.Mutex
	client *Client
}

// NewEnvPublisher returns a Publisher that reads credentials from the
// environment when (and only when) a post is actually published.
func NewEnvPublisher(requestTimeout time.Duration, ratePerMinute int, log logx.Logger) Publisher {
	return &envPublisher{timeout: requestTimeout, rpm: ratePerMinute, log: log}
}

func (p *envPublisher) Publish(ctx context.Context, post queue.Post, imagePaths []string) error {
	c, err := p.get()
	if err != nil {
		return err
	}
	return c.Publish(ctx, post, imagePaths)
}

func (p *envPublisher) get() (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	creds, err := CredentialsFromEnv()
	if err != nil {
		return nil, err
	}
	c, err := NewClient(ClientConfig{
		Credentials:    creds,
		RequestTimeout: p.timeout,
		RatePerMinute:  p.rpm,
	}, p.log)
	if err != nil {
		return nil, err
	}
	p.client = c
	return c, nil
}
