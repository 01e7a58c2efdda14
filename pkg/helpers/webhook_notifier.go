package helpers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/ajvoice/aj-server/pkg/config"
	dbservice "github.com/ajvoice/aj-server/pkg/services/db"
	natsservice "github.com/ajvoice/aj-server/pkg/services/nats"
	redisservice "github.com/ajvoice/aj-server/pkg/services/redis"
)

// Webhook event names emitted by this server.
const (
	WebhookEventRoomStarted   = "room_started"
	WebhookEventRoomFinished  = "room_finished"
	WebhookEventAgentStarted  = "agent_started"
	WebhookEventAgentEnded    = "agent_ended"
	WebhookEventReminderDue   = "reminder_due"
	WebhookEventTurnCompleted = "turn_completed"
)

// WebhookEvent is the JSON body POSTed to every registered url.
type WebhookEvent struct {
	Event   string            `json:"event"`
	RoomId  string            `json:"room_id"`
	RoomSid string            `json:"room_sid,omitempty"`
	UserId  string            `json:"user_id,omitempty"`
	Service string            `json:"service,omitempty"`
	Details map[string]string `json:"details,omitempty"`
	SentAt  int64             `json:"sent_at"`
}

// WebhookNotifier delivers events to the configured urls. Each room gets
// its own single-worker queue so delivery order holds per room while rooms
// never block each other. Queue workers are local to this node; the
// cleanup broadcast over NATS makes sure whichever node holds a room's
// queue drops it when the room is done.
type WebhookNotifier struct {
	ds                   *dbservice.DatabaseService
	rs                   *redisservice.RedisService
	app                  *config.AppConfig
	natsService          *natsservice.NatsService
	client               *retryablehttp.Client
	isEnabled            bool
	enabledForPerRoom    bool
	defaultUrl           string
	// pools holds one queue per room, local to this server instance
	pools  map[string]*workerpool.WorkerPool
	mu     sync.Mutex
	logger *logrus.Entry
}

type webhookRedisFields struct {
	Urls            []string `json:"urls"`
	PerformDeleting bool     `json:"perform_deleting"`
}

func newWebhookNotifier(app *config.AppConfig, logger *logrus.Logger) *WebhookNotifier {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil

	w := &WebhookNotifier{
		app:               app,
		ds:                dbservice.New(app.DB, logger),
		rs:                redisservice.New(app.RDS, logger),
		natsService:       natsservice.New(app, logger),
		client:            client,
		isEnabled:         app.Client.WebhookConf.Enable,
		enabledForPerRoom: app.Client.WebhookConf.EnableForPerRoom,
		defaultUrl:        app.Client.WebhookConf.Url,
		pools:             make(map[string]*workerpool.WorkerPool),
		logger:            logger.WithField("helper", "webhookNotifier"),
	}

	// Subscribe to the cleanup broadcast channel for clustered environments.
	w.subscribeToCleanup()

	return w
}

// subscribeToCleanup listens for cleanup messages broadcast to all servers.
func (w *WebhookNotifier) subscribeToCleanup() {
	_, err := w.natsService.SubscribeWebhookCleanup(func(roomId string) {
		w.cleanupPool(roomId)
	})
	if err != nil {
		w.logger.WithError(err).Errorln("failed to subscribe to webhook cleanup subject")
	}
}

// getOrCreatePool returns the dedicated delivery queue for a room.
func (w *WebhookNotifier) getOrCreatePool(roomId string) *workerpool.WorkerPool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if pool, ok := w.pools[roomId]; ok {
		return pool
	}

	// one worker keeps the per-room delivery order
	pool := workerpool.New(1)
	w.pools[roomId] = pool
	w.logger.Infof("created webhook queue for room: %s", roomId)

	return pool
}

// cleanupPool stops the worker and removes the room's queue from the local map.
func (w *WebhookNotifier) cleanupPool(roomId string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if pool, ok := w.pools[roomId]; ok {
		go pool.StopWait()
		delete(w.pools, roomId)
		w.logger.Infof("cleaned up webhook queue for room: %s", roomId)
	}
}

// RegisterWebhook stores the urls the room's events will go to. Called at
// room creation; per-room urls come from the DB row.
func (w *WebhookNotifier) RegisterWebhook(roomId, sid string) {
	if !w.isEnabled || roomId == "" {
		return
	}

	var urls []string
	if w.defaultUrl != "" {
		urls = append(urls, w.defaultUrl)
	}

	if w.enabledForPerRoom {
		roomInfo, _ := w.ds.GetRoomInfoBySid(sid, nil)
		if roomInfo != nil && roomInfo.WebhookUrl != "" {
			urls = append(urls, roomInfo.WebhookUrl)
		}
	}

	if len(urls) < 1 {
		return
	}

	d := &webhookRedisFields{
		Urls:            urls,
		PerformDeleting: false,
	}

	if err := w.saveData(roomId, d); err != nil {
		w.logger.WithError(err).Errorln("failed to save webhook data")
	}
}

// DeleteWebhook drops the room's registration once its final events are
// out, then broadcasts the queue cleanup to the cluster.
func (w *WebhookNotifier) DeleteWebhook(roomId string) error {
	// we'll wait a long time before deleting the queued webhooks
	// to make sure that we've completed everything else
	time.Sleep(config.MaxDurationWaitBeforeCleanRoomWebhook)

	d, err := w.getData(roomId)
	if err != nil {
		return err
	}
	if d == nil {
		// this room does not have any webhook url
		return nil
	}

	if !d.PerformDeleting {
		// this means a new session may have started for the same room
		return nil
	}

	// Broadcast a cleanup message to all servers in the cluster.
	// Only the server running the worker for this room will act on it.
	if err = w.natsService.PublishWebhookCleanup(roomId); err != nil {
		w.logger.WithError(err).Errorf("failed to publish webhook cleanup for room %s", roomId)
	}

	return w.rs.DeleteWebhookData(roomId)
}

// SendWebhookEvent queues the event for every url registered to its room.
func (w *WebhookNotifier) SendWebhookEvent(event *WebhookEvent) error {
	if !w.isEnabled || event.RoomId == "" {
		return nil
	}
	roomId := event.RoomId

	d, err := w.getData(roomId)
	if err != nil {
		return err
	}
	if d == nil {
		return nil
	}

	// it may happen that the room was created again before we delete the
	// queue in DeleteWebhook. If we delete it then no further events would
	// go out even though the room is active, so reset the deleted status.
	if event.Event == WebhookEventRoomStarted && d.PerformDeleting {
		d.PerformDeleting = false
		if err := w.saveData(roomId, d); err != nil {
			w.logger.WithError(err).Errorln("failed to save webhook data")
		}
	} else if event.Event == WebhookEventRoomFinished && !d.PerformDeleting {
		d.PerformDeleting = true
		if err := w.saveData(roomId, d); err != nil {
			w.logger.WithError(err).Errorln("failed to save webhook data")
		}
	}

	w.addInNotifyQueue(event, d.Urls)
	return nil
}

// ForceToPutInQueue sends a webhook event without consulting the Redis
// registration, querying the DB directly for the room's url. For one-shot
// events outside the normal room lifecycle.
func (w *WebhookNotifier) ForceToPutInQueue(event *WebhookEvent) {
	if !w.isEnabled {
		return
	}
	if event.RoomSid == "" || event.RoomId == "" {
		w.logger.Errorln("empty room info for", event.Event)
		return
	}

	var urls []string
	if w.defaultUrl != "" {
		urls = append(urls, w.defaultUrl)
	}

	if w.enabledForPerRoom {
		roomInfo, _ := w.ds.GetRoomInfoBySid(event.RoomSid, nil)
		if roomInfo != nil && roomInfo.WebhookUrl != "" {
			urls = append(urls, roomInfo.WebhookUrl)
		}
	}

	if len(urls) < 1 {
		return
	}

	w.addInNotifyQueue(event, urls)
}

func (w *WebhookNotifier) addInNotifyQueue(event *WebhookEvent, urls []string) {
	if len(urls) < 1 {
		return
	}
	if event.SentAt == 0 {
		event.SentAt = time.Now().UnixMilli()
	}

	pool := w.getOrCreatePool(event.RoomId)
	for _, u := range urls {
		url := u
		pool.Submit(func() {
			if err := w.sendPostRequest(event, url); err != nil {
				w.logger.WithError(err).Errorln("failed to deliver webhook,", "url:", url, "event:", event.Event, "roomId:", event.RoomId)
			} else if w.app.Client.Debug {
				w.logger.Debugln("webhook sent for event:", event.Event, "roomId:", event.RoomId, "to url:", url)
			}
		})
	}
}

func (w *WebhookNotifier) saveData(roomId string, d *webhookRedisFields) error {
	marshal, err := json.Marshal(d)
	if err != nil {
		return err
	}

	// we'll simply override any existing value & put new
	return w.rs.AddWebhookData(roomId, marshal)
}

func (w *WebhookNotifier) getData(roomId string) (*webhookRedisFields, error) {
	data, err := w.rs.GetWebhookData(roomId)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	d := new(webhookRedisFields)
	if err = json.Unmarshal(data, d); err != nil {
		return nil, err
	}

	return d, nil
}

// sendPostRequest signs the payload the same way the admin API expects its
// requests: API-KEY names the caller, HASH-SIGNATURE is the hex
// HMAC-SHA256 of the body under the shared secret.
func (w *WebhookNotifier) sendPostRequest(event *WebhookEvent, url string) error {
	encoded, err := json.Marshal(event)
	if err != nil {
		return err
	}

	mac := hmac.New(sha256.New, []byte(w.app.Client.Secret))
	mac.Write(encoded)
	signature := hex.EncodeToString(mac.Sum(nil))

	r, err := retryablehttp.NewRequest("POST", url, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	r.Header.Set("API-KEY", w.app.Client.ApiKey)
	r.Header.Set("HASH-SIGNATURE", signature)
	// use a custom mime type to ensure the signature is checked prior to parsing
	r.Header.Set("content-type", "application/webhook+json")

	res, err := w.client.Do(r)
	if err != nil {
		return err
	}
	_ = res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("http response code: %d, msg: %s", res.StatusCode, res.Status)
	}
	return nil
}

var webhookNotifier *WebhookNotifier

// GetWebhookNotifier returns the process-wide notifier, creating it on
// first use.
func GetWebhookNotifier(app *config.AppConfig, logger *logrus.Logger) *WebhookNotifier {
	if webhookNotifier != nil {
		return webhookNotifier
	}
	webhookNotifier = newWebhookNotifier(app, logger)

	return webhookNotifier
}
