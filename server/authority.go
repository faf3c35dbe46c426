package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/KyleDunbarDev/networking-basic/game"
	"github.com/KyleDunbarDev/networking-basic/protocol"
)

const (
	// DefaultTickRate 约 60Hz
	DefaultTickRate = 16 * time.Millisecond

	defaultOutboundBuffer   = 64
	defaultInputBuffer      = 1024
	defaultMaxPendingInputs = 64
	defaultWriteTimeout     = 5 * time.Second
)

var (
	ErrAlreadyStarted = errors.New("server: authority already started")
	ErrNotListening   = errors.New("server: Serve called before Listen")
)

// Status 权威循环的生命周期
type Status int32

const (
	StatusIdle       Status = iota // 尚未启动
	StatusRunning                  // 固定频率 Tick 中
	StatusTerminated               // 启动时绑定失败
	StatusStopped                  // 进程退出时的关闭
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusTerminated:
		return "terminated"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Authority 唯一的权威：独占 GameState 与连接登记表，单协程固定频率推进。
// 其他协程只能通过 events 通道与它通信。
type Authority struct {
	addr     string
	httpAddr string
	tickRate time.Duration

	outboundBuffer int
	maxPending     int
	maxLineBytes   int
	writeTimeout   time.Duration
	clock          func() time.Time

	events chan any
	done   chan struct{} // 关闭后读泵/监听器不再投递事件
	nextID atomic.Uint64

	regMu    sync.Mutex
	closing  bool           // 置位后 attach 直接关闭新连接
	attachWG sync.WaitGroup // 正在登记中的连接

	// 以下仅 Tick 协程访问
	players map[string]*Player
	world   *game.State
	tickSeq uint64
	doomed  map[string]string // 本 Tick 结束时移除：id → 原因

	// 跨协程只读发布
	status      atomic.Int32
	rules       atomic.Pointer[game.Rules]
	lastTick    atomic.Uint64
	connGauge   atomic.Int64
	playerGauge atomic.Int64
	metrics     *Metrics

	mu       sync.Mutex
	listener net.Listener
	httpLn   net.Listener

	log *zap.SugaredLogger
}

// Option 可选配置
type Option func(*Authority)

func WithRules(r game.Rules) Option {
	return func(a *Authority) { a.world.SetRules(r) }
}

// WithHTTPAddr 启用 HTTP（/ws、/metrics、/admin/config、/healthz）
func WithHTTPAddr(addr string) Option {
	return func(a *Authority) { a.httpAddr = addr }
}

func WithOutboundBuffer(n int) Option {
	return func(a *Authority) {
		if n > 0 {
			a.outboundBuffer = n
		}
	}
}

func WithInputBuffer(n int) Option {
	return func(a *Authority) {
		if n > 0 {
			a.events = make(chan any, n)
		}
	}
}

func WithMaxPendingInputs(n int) Option {
	return func(a *Authority) {
		if n > 0 {
			a.maxPending = n
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(a *Authority) { a.writeTimeout = d }
}

func WithMaxLineBytes(n int) Option {
	return func(a *Authority) { a.maxLineBytes = n }
}

func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		if now != nil {
			a.clock = now
		}
	}
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(a *Authority) {
		if l != nil {
			a.log = l
		}
	}
}

// New 创建权威循环；核心参数只有监听地址与 Tick 间隔
func New(addr string, tickRate time.Duration, opts ...Option) *Authority {
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	a := &Authority{
		addr:           addr,
		tickRate:       tickRate,
		outboundBuffer: defaultOutboundBuffer,
		maxPending:     defaultMaxPendingInputs,
		maxLineBytes:   protocol.DefaultMaxLineBytes,
		writeTimeout:   defaultWriteTimeout,
		clock:          time.Now,
		events:         make(chan any, defaultInputBuffer),
		done:           make(chan struct{}),
		players:        make(map[string]*Player),
		world:          game.NewState(game.DefaultRules()),
		tickSeq:        1,
		doomed:         make(map[string]string),
		metrics:        &Metrics{},
		log:            Log,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.world.SetClock(func() protocol.Timestamp { return protocol.FromTime(a.clock()) })
	r := a.world.Rules()
	a.rules.Store(&r)
	return a
}

func (a *Authority) Status() Status { return Status(a.status.Load()) }

// Rules 当前生效的规则（只读副本）
func (a *Authority) Rules() game.Rules { return *a.rules.Load() }

func (a *Authority) Metrics() *Metrics { return a.metrics }

// Addr 监听地址；Listen 之前为 nil
func (a *Authority) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

func (a *Authority) HTTPAddr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.httpLn == nil {
		return nil
	}
	return a.httpLn.Addr()
}

// Listen 绑定监听端点；失败是唯一的致命错误，状态转为 Terminated
func (a *Authority) Listen() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return ErrAlreadyStarted
	}
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		a.status.Store(int32(StatusTerminated))
		return fmt.Errorf("bind %s: %w", a.addr, err)
	}
	if a.httpAddr != "" {
		hl, err := net.Listen("tcp", a.httpAddr)
		if err != nil {
			_ = ln.Close()
			a.status.Store(int32(StatusTerminated))
			return fmt.Errorf("bind http %s: %w", a.httpAddr, err)
		}
		a.httpLn = hl
	}
	a.listener = ln
	return nil
}

// Run = Listen + Serve
func (a *Authority) Run(ctx context.Context) error {
	if err := a.Listen(); err != nil {
		return err
	}
	return a.Serve(ctx)
}

// Serve 启动接入协程并在当前协程运行 Tick 循环，直到 ctx 结束
func (a *Authority) Serve(ctx context.Context) error {
	a.mu.Lock()
	ln, httpLn := a.listener, a.httpLn
	a.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}
	if !a.status.CompareAndSwap(int32(StatusIdle), int32(StatusRunning)) {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.acceptLoop(ctx, ln)
	}()

	var srv *http.Server
	if httpLn != nil {
		srv = &http.Server{Handler: a.Handler(), ReadHeaderTimeout: 10 * time.Second}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Errorf("http serve: %v", err)
			}
		}()
		a.log.Infof("http listening on %s (/ws, /metrics, /admin/config)", httpLn.Addr())
	}

	a.log.Infof("authority listening on %s; tick=%v", ln.Addr(), a.tickRate)
	a.loop(ctx)

	// 关闭：停止接入 → 等待接入协程退出 → 关闭所有连接
	a.log.Info("authority shutting down")
	close(a.done)
	err := ignoreClosed(ln.Close())
	if srv != nil {
		shutdownCtx, release := context.WithTimeout(context.Background(), 5*time.Second)
		err = multierr.Append(err, srv.Shutdown(shutdownCtx))
		release()
	}
	wg.Wait()
	a.evictAll("shutdown")
	a.status.Store(int32(StatusStopped))
	return err
}

// evictAll 在 done 关闭后调用：拒绝新的 attach，等在途的 attach 结束，
// 收尾它们已投递的登记，再移除全部连接
func (a *Authority) evictAll(reason string) {
	a.regMu.Lock()
	a.closing = true
	a.regMu.Unlock()
	a.attachWG.Wait()

	a.drainEvents()
	for id := range a.players {
		a.removePlayer(id, reason)
	}
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// attach 为新连接分配会话 id，启动写协程，登记到权威循环，再启动读协程
func (a *Authority) attach(t transport) {
	a.regMu.Lock()
	if a.closing {
		a.regMu.Unlock()
		_ = t.Close()
		return
	}
	a.attachWG.Add(1)
	a.regMu.Unlock()
	defer a.attachWG.Done()

	id := strconv.FormatUint(a.nextID.Add(1), 10)
	log := a.log.With("player", id, "peer", t.RemoteAddr(), "conn", ksuid.New().String())
	conn := newClientConn(t, a.outboundBuffer, log)
	go conn.writePump()

	if !a.send(registerEvent{id: id, conn: conn}) {
		conn.Close()
		return
	}
	log.Info("connection accepted")
	go conn.readPump(a, id)
}

// send 阻塞投递事件；权威循环已关闭时返回 false
func (a *Authority) send(ev any) bool {
	select {
	case <-a.done:
		return false
	default:
	}
	select {
	case a.events <- ev:
		return true
	case <-a.done:
		return false
	}
}

// OnInput 入站消息只记录意图，等下一次 Tick 处理。
// Move 在通道拥塞时直接丢弃以保证 Tick 准时；Join/Disconnect 必须送达。
// 返回 false 表示权威循环已关闭，读泵应退出。
func (a *Authority) OnInput(playerID string, msg protocol.ClientMessage) bool {
	ev := inputEvent{id: playerID, input: PlayerInput{Timestamp: protocol.FromTime(a.clock()), Message: msg}}
	if msg.Kind != protocol.ClientMove {
		return a.send(ev)
	}
	select {
	case <-a.done:
		return false
	case a.events <- ev:
	default:
		a.metrics.IncChanFullDiscarded()
	}
	return true
}

// RequestLeave 请求在 Tick 协程中移除玩家，避免并发改动世界状态
func (a *Authority) RequestLeave(playerID string) {
	a.send(inputEvent{id: playerID, input: PlayerInput{Timestamp: protocol.FromTime(a.clock()), Message: protocol.Disconnect()}})
}

// UpdateRules 将规则变更交给权威循环，下一 Tick 生效
func (a *Authority) UpdateRules(r game.Rules) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if !a.send(rulesEvent{rules: r}) {
		return errors.New("server: authority is shut down")
	}
	return nil
}
