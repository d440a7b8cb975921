// Package channel владеет жизненным циклом подключения канала исходящих
// сообщений: выдача кода привязки, опрос статуса у внешнего моста и
// маленькая машина состояний для вызывающих.
//
// Переходы срабатывают по фронту: побочный эффект "канал подключился"
// (сохранение идентификатора сессии, событие в очередь) выполняется ровно
// один раз — на переходе в Connected из любого другого состояния.
// Симметрично событие отключения публикуется один раз на входе в
// Disconnected из любого другого состояния.
package channel

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/leadpilot/leadpilot/internal/bridge"
	"github.com/leadpilot/leadpilot/internal/lib/sl"
	"github.com/leadpilot/leadpilot/internal/models"
)

// Ошибки состояния канала.
var (
	// ErrNotConnected действие требует подключённого канала.
	ErrNotConnected = errors.New("channel is not connected")
	// ErrPending привязка начата, но ещё не подтверждена.
	ErrPending = errors.New("channel pairing is still pending")
)

// Bridge определяет операции внешнего месседжинг-моста.
type Bridge interface {
	Connect(ctx context.Context, accountUID string) (*bridge.ConnectResponse, error)
	Status(ctx context.Context, accountUID string) (*bridge.StatusResponse, error)
	Disconnect(ctx context.Context, accountUID string) error
	SendMessage(ctx context.Context, instanceID, pairingSecret, to, text string) error
}

// Repository определяет методы для работы с подключением канала в хранилище.
type Repository interface {
	GetChannelConnection(ctx context.Context, accountUID string) (*models.ChannelConnection, error)
	UpsertChannelConnection(ctx context.Context, conn models.ChannelConnection) error
}

// StatusCache кэширует последнее известное состояние канала между запросами.
type StatusCache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// statusCacheTTL ограничивает жизнь закэшированного статуса: переходы
// пишутся в кэш насквозь, TTL страхует от потерянной записи.
const statusCacheTTL = 30 * time.Second

func statusCacheKey(accountUID string) string {
	return "channel:" + accountUID
}

// Controller реализует машину состояний привязки канала.
// Все мутации ChannelConnection проходят только через него.
type Controller struct {
	repo         Repository
	bridge       Bridge
	events       EventPublisher
	cache        StatusCache
	log          *slog.Logger
	pollInterval time.Duration

	// baseCtx ограничивает жизнь циклов опроса временем жизни приложения,
	// а не HTTP-запроса, который их запустил.
	baseCtx context.Context

	mu       sync.Mutex
	inflight map[string]bool
	loops    map[string]context.CancelFunc
}

// NewController создает новый экземпляр Controller.
// Кэш статуса опционален: при nil все чтения идут в хранилище.
func NewController(baseCtx context.Context, repo Repository, br Bridge, events EventPublisher,
	cache StatusCache, log *slog.Logger, pollInterval time.Duration) *Controller {
	if pollInterval == 0 {
		pollInterval = 2 * time.Second
	}
	return &Controller{
		repo:         repo,
		bridge:       br,
		events:       events,
		cache:        cache,
		log:          log,
		pollInterval: pollInterval,
		baseCtx:      baseCtx,
		inflight:     make(map[string]bool),
		loops:        make(map[string]context.CancelFunc),
	}
}

func (c *Controller) cacheStatus(conn *models.ChannelConnection) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(statusCacheKey(conn.AccountUID), conn, statusCacheTTL); err != nil {
		c.log.Warn("failed to cache channel status",
			slog.String("account_uid", conn.AccountUID), sl.Err(err))
	}
}

func (c *Controller) dropCachedStatus(accountUID string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(statusCacheKey(accountUID)); err != nil {
		c.log.Warn("failed to invalidate channel status cache",
			slog.String("account_uid", accountUID), sl.Err(err))
	}
}

func (c *Controller) current(ctx context.Context, accountUID string) (*models.ChannelConnection, error) {
	conn, err := c.repo.GetChannelConnection(ctx, accountUID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		conn = &models.ChannelConnection{
			AccountUID: accountUID,
			Status:     models.ChannelDisconnected,
		}
	}
	return conn, nil
}

// Connect запрашивает у моста начало привязки.
// Если мост сообщает об уже активной сессии, контроллер переходит сразу
// в Connected, минуя PendingPairing и не создавая код для сканирования.
func (c *Controller) Connect(ctx context.Context, accountUID string) (*models.ChannelConnection, error) {
	const op = "channel.Connect"

	prev, err := c.current(ctx, accountUID)
	if err != nil {
		return nil, err
	}

	resp, err := c.bridge.Connect(ctx, accountUID)
	if err != nil {
		// локальное состояние не меняется, ошибка уходит вызывающему
		return nil, err
	}

	conn := models.ChannelConnection{AccountUID: accountUID}
	if resp.AlreadyConnected {
		conn.Status = models.ChannelConnected
		conn.InstanceID = resp.InstanceID
		conn.PairingSecret = resp.PairingSecret
		conn.ProfileName = resp.ProfileName
	} else {
		conn.Status = models.ChannelPendingPairing
		conn.PairingCode = resp.PairingCode
	}

	if err := c.repo.UpsertChannelConnection(ctx, conn); err != nil {
		return nil, err
	}
	c.cacheStatus(&conn)

	if conn.Status == models.ChannelConnected && prev.Status != models.ChannelConnected {
		c.emit(RouteConnected, accountUID, conn.InstanceID, conn.ProfileName)
	}
	if conn.Status == models.ChannelPendingPairing {
		c.startPolling(accountUID)
	}

	c.log.Info("channel pairing initiated",
		slog.String("op", op),
		slog.String("account_uid", accountUID),
		slog.String("status", conn.Status))
	return &conn, nil
}

// Poll опрашивает мост и применяет переход состояния.
// Пока предыдущий опрос аккаунта не завершён, новый к мосту не уходит.
// Недоступность моста не фатальна: состояние не меняется, повтор на
// следующем тике.
func (c *Controller) Poll(ctx context.Context, accountUID string) (*models.ChannelConnection, error) {
	const op = "channel.Poll"

	c.mu.Lock()
	if c.inflight[accountUID] {
		c.mu.Unlock()
		return c.current(ctx, accountUID)
	}
	c.inflight[accountUID] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inflight, accountUID)
		c.mu.Unlock()
	}()

	prev, err := c.current(ctx, accountUID)
	if err != nil {
		return nil, err
	}

	st, err := c.bridge.Status(ctx, accountUID)
	if err != nil {
		c.log.Warn("bridge status poll failed, state unchanged",
			slog.String("op", op),
			slog.String("account_uid", accountUID),
			sl.Err(err))
		return prev, nil
	}

	next := mapUpstreamStatus(st, prev.Status)
	if next == prev.Status {
		return prev, nil
	}

	conn := *prev
	conn.Status = next
	switch next {
	case models.ChannelConnected:
		conn.InstanceID = st.InstanceID
		conn.ProfileName = st.ProfileName
		if st.PairingSecret != "" {
			conn.PairingSecret = st.PairingSecret
		}
		conn.PairingCode = ""
	case models.ChannelDisconnected:
		conn.InstanceID = ""
		conn.PairingSecret = ""
		conn.PairingCode = ""
		conn.ProfileName = ""
	}

	if err := c.repo.UpsertChannelConnection(ctx, conn); err != nil {
		return nil, err
	}
	c.cacheStatus(&conn)

	// событие только по фронту перехода
	if next == models.ChannelConnected {
		c.emit(RouteConnected, accountUID, conn.InstanceID, conn.ProfileName)
	}
	if next == models.ChannelDisconnected {
		c.emit(RouteDisconnected, accountUID, prev.InstanceID, prev.ProfileName)
	}

	c.log.Info("channel state transition",
		slog.String("op", op),
		slog.String("account_uid", accountUID),
		slog.String("from", prev.Status),
		slog.String("to", next))
	return &conn, nil
}

// mapUpstreamStatus переводит ответ моста в локальное состояние.
// Неизвестный статус оставляет состояние прежним.
func mapUpstreamStatus(st *bridge.StatusResponse, prev string) string {
	if st.Connected {
		return models.ChannelConnected
	}
	switch strings.ToLower(st.Status) {
	case "scanned", "connecting":
		return models.ChannelConnecting
	case "disconnected", "logged_out":
		return models.ChannelDisconnected
	case "pending", "pairing":
		return models.ChannelPendingPairing
	default:
		return prev
	}
}

// Status возвращает последнее известное состояние канала без похода к мосту.
// Сначала читается кэш, при промахе — хранилище.
func (c *Controller) Status(ctx context.Context, accountUID string) (*models.ChannelConnection, error) {
	if c.cache != nil {
		var cached *models.ChannelConnection
		found, err := c.cache.Get(statusCacheKey(accountUID), &cached)
		if err != nil {
			c.log.Warn("failed to read channel status from cache",
				slog.String("account_uid", accountUID), sl.Err(err))
		}
		if found && cached != nil {
			return cached, nil
		}
	}

	conn, err := c.current(ctx, accountUID)
	if err != nil {
		return nil, err
	}
	c.cacheStatus(conn)
	return conn, nil
}

// Disconnect просит мост разорвать сессию и безусловно сбрасывает локальное
// состояние в Disconnected с очисткой секрета. Неудача на стороне моста
// логируется и не мешает сбросу.
func (c *Controller) Disconnect(ctx context.Context, accountUID string) (*models.ChannelConnection, error) {
	const op = "channel.Disconnect"

	c.stopPolling(accountUID)

	prev, err := c.current(ctx, accountUID)
	if err != nil {
		return nil, err
	}

	if err := c.bridge.Disconnect(ctx, accountUID); err != nil {
		c.log.Warn("bridge disconnect failed, resetting local state anyway",
			slog.String("op", op),
			slog.String("account_uid", accountUID),
			sl.Err(err))
	}

	conn := models.ChannelConnection{
		AccountUID: accountUID,
		Status:     models.ChannelDisconnected,
	}
	if err := c.repo.UpsertChannelConnection(ctx, conn); err != nil {
		return nil, err
	}
	c.dropCachedStatus(accountUID)

	if prev.Status != models.ChannelDisconnected {
		c.emit(RouteDisconnected, accountUID, prev.InstanceID, prev.ProfileName)
	}
	return &conn, nil
}

// Send отправляет сообщение каждому получателю через подключённый канал.
// Возвращает количество доставленных мосту сообщений и первую ошибку.
func (c *Controller) Send(ctx context.Context, accountUID string, to []string, text string) (int, error) {
	conn, err := c.current(ctx, accountUID)
	if err != nil {
		return 0, err
	}
	if !conn.IsConnected() {
		switch conn.Status {
		case models.ChannelPendingPairing, models.ChannelConnecting:
			return 0, ErrPending
		default:
			return 0, ErrNotConnected
		}
	}

	var sent int
	for _, recipient := range to {
		if err := c.bridge.SendMessage(ctx, conn.InstanceID, conn.PairingSecret, recipient, text); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
