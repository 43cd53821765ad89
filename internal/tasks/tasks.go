package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/email"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/models"
)

// TaskType defines the type of a background task.
const (
	TypeInquiryNotify = "inquiry:notify"
)

const (
	notifyQueue    = "default"
	notifyMaxRetry = 5
)

// redisOpt copies the connection settings of rdb for asynq.
func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

// --- Task Client (Enqueuing tasks) ---

// InquiryNotifyPayload is everything the worker needs to write the e-mail,
// so it never has to read Mongo.
type InquiryNotifyPayload struct {
	To        string    `json:"to"`
	InquiryID string    `json:"inquiry_id"`
	FullName  string    `json:"full_name"`
	ContactNo string    `json:"contact_no,omitempty"`
	EmailID   string    `json:"email_id"`
	ListingID string    `json:"listing_id,omitempty"`
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"created_at"`
}

// NewInquiryNotifyTask builds the task for a stored inquiry.
func NewInquiryNotifyTask(to string, inquiry *models.Inquiry) (*asynq.Task, error) {
	payload := InquiryNotifyPayload{
		To:        to,
		InquiryID: inquiry.ID.Hex(),
		FullName:  inquiry.FullName,
		ContactNo: inquiry.ContactNo,
		EmailID:   inquiry.EmailID,
		Query:     inquiry.Query,
		CreatedAt: inquiry.CreatedAt,
	}
	if inquiry.Post != nil {
		payload.ListingID = inquiry.Post.Hex()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal inquiry notify payload: %w", err)
	}
	return asynq.NewTask(TypeInquiryNotify, raw, asynq.Queue(notifyQueue), asynq.MaxRetry(notifyMaxRetry)), nil
}

// Client enqueues background tasks.
type Client struct {
	asynq       *asynq.Client
	notifyEmail string
	logger      *zap.Logger
}

// NewClient creates a task client on the same Redis as rdb. Inquiry
// notifications go to notifyEmail; an empty address disables them.
func NewClient(rdb *redis.Client, notifyEmail string, logger *zap.Logger) *Client {
	return &Client{
		asynq:       asynq.NewClient(redisOpt(rdb)),
		notifyEmail: notifyEmail,
		logger:      logger,
	}
}

// EnqueueInquiryNotify schedules the "new inquiry" e-mail to the firm.
func (c *Client) EnqueueInquiryNotify(ctx context.Context, inquiry *models.Inquiry) error {
	if c.notifyEmail == "" {
		return nil
	}
	task, err := NewInquiryNotifyTask(c.notifyEmail, inquiry)
	if err != nil {
		return err
	}
	info, err := c.asynq.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeInquiryNotify, err)
	}
	c.logger.Debug("Enqueued task", zap.String("type", TypeInquiryNotify), zap.String("task_id", info.ID))
	return nil
}

// Close releases the Redis connection of the client.
func (c *Client) Close() error {
	return c.asynq.Close()
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
type TaskProcessor struct {
	emailSender email.Sender
	logger      *zap.Logger
}

func NewTaskProcessor(emailSender email.Sender, logger *zap.Logger) *TaskProcessor {
	return &TaskProcessor{emailSender: emailSender, logger: logger}
}

// SetupServer configures an Asynq server and the mux it should run.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, logger *zap.Logger) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		redisOpt(rdb),
		asynq.Config{
			Queues: map[string]int{
				notifyQueue: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", zap.String("type", task.Type()), zap.Error(err))
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeInquiryNotify, processor.HandleInquiryNotifyTask)
	return srv, mux
}

// --- Task Handlers ---

var inquiryNotifyBody = template.Must(template.New("inquiry").Parse(`A new inquiry was submitted.

Name:    {{.FullName}}
E-mail:  {{.EmailID}}
{{- if .ContactNo}}
Phone:   {{.ContactNo}}
{{- end}}
{{- if .ListingID}}
Listing: {{.ListingID}}
{{- end}}
Received: {{.CreatedAt.Format "2006-01-02 15:04 MST"}}

{{.Query}}
`))

// HandleInquiryNotifyTask e-mails the firm about a new inquiry.
func (p *TaskProcessor) HandleInquiryNotifyTask(ctx context.Context, t *asynq.Task) error {
	var payload InquiryNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal inquiry notify payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("inquiry notify payload has no recipient: %w", asynq.SkipRetry)
	}

	var body bytes.Buffer
	if err := inquiryNotifyBody.Execute(&body, payload); err != nil {
		return fmt.Errorf("render inquiry notification: %v: %w", err, asynq.SkipRetry)
	}
	subject := fmt.Sprintf("New inquiry from %s", payload.FullName)

	if err := p.emailSender.Send(ctx, []string{payload.To}, subject, body.String()); err != nil {
		p.logger.Warn("Inquiry notification failed, will retry", zap.String("inquiry_id", payload.InquiryID), zap.Error(err))
		return err
	}
	p.logger.Info("Inquiry notification sent", zap.String("inquiry_id", payload.InquiryID))
	return nil
}
