package feeds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// OSTIUM PRICE STREAM - Live mid prices over WebSocket
// ═══════════════════════════════════════════════════════════════════════════════
//
// Optional fast path for the price client: when a fresh tick is cached the
// HTTP round-trip is skipped. The bot works without it (pure HTTP polling).
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	reconnectDelay = 5 * time.Second
	pingInterval   = 30 * time.Second
)

// Tick is one price update from the stream.
type Tick struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	Mid       float64 `json:"mid"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Timestamp int64   `json:"timestamp"`
}

type cachedPrice struct {
	price float64
	at    time.Time
}

// PriceStream maintains the WebSocket connection and an in-memory price cache.
type PriceStream struct {
	mu sync.RWMutex

	wsURL     string
	conn      *websocket.Conn
	connected bool
	running   bool
	stopCh    chan struct{}

	prices map[string]cachedPrice // "BTC-USD" -> last mid
}

// NewPriceStream creates a stream for the given WebSocket endpoint.
func NewPriceStream(wsURL string) *PriceStream {
	return &PriceStream{
		wsURL:  wsURL,
		stopCh: make(chan struct{}),
		prices: make(map[string]cachedPrice),
	}
}

// Start connects and begins processing
func (s *PriceStream) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.connectionLoop()
	log.Info().Str("url", s.wsURL).Msg("📡 Price stream started")
}

// Stop closes the connection
func (s *PriceStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	close(s.stopCh)

	if s.conn != nil {
		s.conn.Close()
	}

	log.Info().Msg("Price stream stopped")
}

// GetPrice returns the cached mid for a pair and when it was seen.
func (s *PriceStream) GetPrice(base, quote string) (float64, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cached, ok := s.prices[base+"-"+quote]
	if !ok {
		return 0, time.Time{}, false
	}
	return cached.price, cached.at, true
}

// connectionLoop maintains the WebSocket connection
func (s *PriceStream) connectionLoop() {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if err := s.connect(); err != nil {
			log.Error().Err(err).Msg("Price stream connect failed, retrying...")
			time.Sleep(reconnectDelay)
			continue
		}

		s.readLoop()

		select {
		case <-s.stopCh:
			return
		default:
			time.Sleep(reconnectDelay)
		}
	}
}

func (s *PriceStream) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	go s.pingLoop(conn)

	log.Info().Msg("Price stream connected")
	return nil
}

func (s *PriceStream) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *PriceStream) readLoop() {
	defer func() {
		s.mu.Lock()
		s.connected = false
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
	}()

	for {
		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("Price stream read error")
			return
		}

		var tick Tick
		if err := json.Unmarshal(raw, &tick); err != nil {
			log.Debug().Err(err).Msg("skipping unparseable tick")
			continue
		}
		if tick.From == "" || tick.Mid <= 0 {
			continue
		}

		quote := tick.To
		if quote == "" {
			quote = "USD"
		}

		s.mu.Lock()
		s.prices[tick.From+"-"+quote] = cachedPrice{price: tick.Mid, at: time.Now()}
		s.mu.Unlock()
	}
}
