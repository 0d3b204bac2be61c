// Package websocket 向浏览器看板实时推送报告事件
package websocket

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/weisyn/esg-registry/client/core/registry"
	"github.com/weisyn/esg-registry/internal/api/websocket/types"
	"github.com/weisyn/esg-registry/internal/core/infrastructure/event"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// client 单个连接
type client struct {
	conn  *websocket.Conn
	send  chan []byte
	owner *common.Address // 为空表示不过滤
	kpi   *big.Int

	closeOnce sync.Once
}

func (c *client) matches(ev *registry.ReportSubmitted) bool {
	if c.owner != nil && *c.owner != ev.Owner {
		return false
	}
	if c.kpi != nil && (ev.KPITypeID == nil || c.kpi.Cmp(ev.KPITypeID) != 0) {
		return false
	}
	return true
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Server WebSocket服务器
//
// 订阅事件总线上的报告事件，按连接的 owner/kpi 过滤后广播。
// 发送队列满的慢连接会被断开。
type Server struct {
	logger   *zap.Logger
	bus      event.Subscriber
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	// 总线回调持有总线锁后再取 mu，订阅状态单独加锁
	subMu sync.Mutex
	subs  []*event.Subscription
}

// NewServer 创建WebSocket服务器
func NewServer(logger *zap.Logger, bus event.Subscriber) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		logger: logger,
		bus:    bus,
		upgrader: websocket.Upgrader{
			// 看板与 API 可能不同源
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
}

// Start 订阅事件总线
func (s *Server) Start() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if len(s.subs) > 0 {
		return nil
	}
	handlers := []struct {
		topic   event.EventType
		handler func(*registry.ReportSubmitted)
	}{
		{event.EventTypeReportObserved, s.onObserved},
		{event.EventTypeReportConfirmed, s.onConfirmed},
		{event.EventTypeReportRemoved, s.onRemoved},
	}
	for _, h := range handlers {
		sub, err := s.bus.Subscribe(h.topic, h.handler)
		if err != nil {
			s.unsubscribeLocked()
			return fmt.Errorf("订阅 %s 失败: %w", h.topic, err)
		}
		s.subs = append(s.subs, sub)
	}
	return nil
}

// Stop 取消订阅并断开所有连接
func (s *Server) Stop() {
	s.subMu.Lock()
	s.unsubscribeLocked()
	s.subMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.close()
		delete(s.clients, c)
	}
}

func (s *Server) unsubscribeLocked() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
}

func (s *Server) onObserved(ev *registry.ReportSubmitted)  { s.broadcast(types.TypeReportObserved, ev) }
func (s *Server) onConfirmed(ev *registry.ReportSubmitted) { s.broadcast(types.TypeReportConfirmed, ev) }
func (s *Server) onRemoved(ev *registry.ReportSubmitted)   { s.broadcast(types.TypeReportRemoved, ev) }

func (s *Server) broadcast(typ string, ev *registry.ReportSubmitted) {
	if ev == nil {
		return
	}
	data, err := json.Marshal(types.NewReportEvent(typ, ev))
	if err != nil {
		s.logger.Error("序列化推送消息失败", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if !c.matches(ev) {
			continue
		}
		select {
		case c.send <- data:
		default:
			s.logger.Warn("WebSocket 发送队列已满，断开连接",
				zap.String("remote_addr", c.conn.RemoteAddr().String()))
			c.close()
			delete(s.clients, c)
		}
	}
}

// ClientCount 当前连接数
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// HandleWebSocket 处理WebSocket连接（Gin Handler）
//
// 可选查询参数 owner、kpi 用于过滤推送。
func (s *Server) HandleWebSocket(c *gin.Context) {
	cl := &client{send: make(chan []byte, sendBuffer)}
	welcome := types.WelcomeEvent{Type: types.TypeWelcome}

	if owner := c.Query("owner"); owner != "" {
		if !common.IsHexAddress(owner) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid owner address %q", owner)})
			return
		}
		addr := common.HexToAddress(owner)
		cl.owner = &addr
		welcome.Owner = addr.Hex()
	}
	if kpi := c.Query("kpi"); kpi != "" {
		id, ok := new(big.Int).SetString(kpi, 10)
		if !ok || id.Sign() <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid kpi %q", kpi)})
			return
		}
		cl.kpi = id
		welcome.KPI = id.String()
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket 升级失败", zap.Error(err))
		return
	}
	cl.conn = conn

	if data, err := json.Marshal(welcome); err == nil {
		cl.send <- data
	}

	s.mu.Lock()
	s.clients[cl] = struct{}{}
	s.mu.Unlock()

	s.logger.Info("WebSocket 连接建立",
		zap.String("remote_addr", conn.RemoteAddr().String()),
		zap.String("owner", welcome.Owner),
		zap.String("kpi", welcome.KPI))

	go s.writePump(cl)
	s.readPump(cl)
}

// readPump 只处理控制帧，连接断开时注销
func (s *Server) readPump(cl *client) {
	defer func() {
		s.mu.Lock()
		if _, ok := s.clients[cl]; ok {
			delete(s.clients, cl)
			cl.close()
		}
		s.mu.Unlock()
		_ = cl.conn.Close()
		s.logger.Info("WebSocket 连接关闭", zap.String("remote_addr", cl.conn.RemoteAddr().String()))
	}()

	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("WebSocket 连接异常关闭", zap.Error(err))
			}
			return
		}
	}
}

func (s *Server) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// RegisterRoutes 注册WebSocket路由到Gin
func (s *Server) RegisterRoutes(router gin.IRoutes) {
	router.GET("/ws", s.HandleWebSocket)
}
