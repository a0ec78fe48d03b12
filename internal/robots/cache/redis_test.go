package cache

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_UnreachableServerIsAMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedisCache(client, time.Minute, log.New(io.Discard))
	defer c.Close()

	ctx := context.Background()
	c.Put(ctx, "wayback-robots:snapshot:test", "value")

	value, found := c.Get(ctx, "wayback-robots:snapshot:test")
	assert.False(t, found)
	assert.Empty(t, value)
	assert.Error(t, c.Ping(ctx))
}

// respServer answers the handful of RESP2 commands the cache issues and
// records every command it receives.
type respServer struct {
	mu       sync.Mutex
	commands [][]string
	values   map[string]string
	addr     string
}

func newRESPServer(t *testing.T) *respServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	s := &respServer{values: map[string]string{}, addr: ln.Addr().String()}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *respServer) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.commands = append(s.commands, args)
		reply := s.reply(args)
		s.mu.Unlock()
		if _, err := io.WriteString(conn, reply); err != nil {
			return
		}
	}
}

func (s *respServer) reply(args []string) string {
	switch strings.ToUpper(args[0]) {
	case "HELLO":
		return "-ERR unknown command 'HELLO'\r\n"
	case "SETEX":
		s.values[args[1]] = args[3]
		return "+OK\r\n"
	case "GET":
		v, ok := s.values[args[1]]
		if !ok {
			return "$-1\r\n"
		}
		return fmt.Sprintf("$%d\r\n%s\r\n", len(v), v)
	case "PING":
		return "+PONG\r\n"
	default:
		return "+OK\r\n"
	}
}

func (s *respServer) find(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.commands {
		if strings.EqualFold(c[0], name) {
			return c
		}
	}
	return nil
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(line, "*") {
		return nil, fmt.Errorf("unexpected line %q", line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		header, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, "$")))
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func TestRedisCache_PutUsesSetExWithTTL(t *testing.T) {
	server := newRESPServer(t)
	client := redis.NewClient(&redis.Options{
		Addr:       server.addr,
		Protocol:   2,
		MaxRetries: -1,
	})
	c := NewRedisCache(client, 90*time.Second, log.New(io.Discard))
	defer c.Close()

	ctx := context.Background()
	c.Put(ctx, "wayback-robots:snapshot:20200101000000/http://example.com/robots.txt", `{"paths":["/a"]}`)

	setex := server.find("SETEX")
	require.NotNil(t, setex, "no SETEX command received")
	require.Len(t, setex, 4)
	assert.Equal(t, "wayback-robots:snapshot:20200101000000/http://example.com/robots.txt", setex[1])
	assert.Equal(t, "90", setex[2])
	assert.Equal(t, `{"paths":["/a"]}`, setex[3])

	value, found := c.Get(ctx, "wayback-robots:snapshot:20200101000000/http://example.com/robots.txt")
	assert.True(t, found)
	assert.Equal(t, `{"paths":["/a"]}`, value)

	_, found = c.Get(ctx, "wayback-robots:snapshot:missing")
	assert.False(t, found)
}

func TestNewRedisCache_DefaultTTL(t *testing.T) {
	c := NewRedisCache(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), 0, log.New(io.Discard))
	defer c.Close()

	assert.Equal(t, DefaultTTL, c.ttl)
}

// TestRedisCache_RoundTrip needs a live server, e.g.
// WAYBACK_ROBOTS_TEST_REDIS_ADDR=localhost:6379 go test ./internal/robots/cache/
func TestRedisCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("WAYBACK_ROBOTS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("WAYBACK_ROBOTS_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	c := NewRedisCacheFromAddr(addr, time.Minute, log.New(io.Discard))
	defer c.Close()
	require.NoError(t, c.Ping(ctx))

	key := "wayback-robots:snapshot:test-" + time.Now().Format("150405.000000")
	c.Put(ctx, key, `{"paths":["/a"]}`)

	value, found := c.Get(ctx, key)
	assert.True(t, found)
	assert.Equal(t, `{"paths":["/a"]}`, value)

	ttl, err := c.client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	c.client.Del(ctx, key)
}
