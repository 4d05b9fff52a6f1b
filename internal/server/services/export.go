package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	sc "github.com/dmitrijs2005/userkeeper/internal/server/config"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/google/uuid"
)

// exportEventLimit caps how many recent events go into one export.
const exportEventLimit = 1000

// Seams for tests.
var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ExportedUser is the account as it appears in an export; the password
// hash is never included.
type ExportedUser struct {
	ID        string            `json:"id"`
	Username  string            `json:"username"`
	Email     string            `json:"email"`
	Status    models.UserStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	LastLogin *time.Time        `json:"last_login,omitempty"`
}

type ExportDocument struct {
	User        ExportedUser        `json:"user"`
	Profile     *models.Profile     `json:"profile"`
	Preferences *models.Preferences `json:"preferences"`
	Actions     []*models.Event     `json:"actions"`
	ExportDate  time.Time           `json:"export_date"`
}

// ExportResult names where an archived export can be fetched. Key and URL
// are empty when no archiver is configured.
type ExportResult struct {
	Document *ExportDocument
	Key      string
	URL      string
}

// Archiver stores a serialized export and returns its key and a download URL.
type Archiver interface {
	Archive(ctx context.Context, userID string, body []byte) (key string, url string, err error)
}

type ExportService struct {
	identity *IdentityManager
	events   *EventLog
	archiver Archiver
	clock    common.Clock
	logger   logging.Logger
}

// NewExportService builds the service; archiver may be nil.
func NewExportService(identity *IdentityManager, events *EventLog, archiver Archiver, clock common.Clock, logger logging.Logger) *ExportService {
	return &ExportService{identity: identity, events: events, archiver: archiver, clock: clock, logger: logger.With("module", "export")}
}

// Export collects everything stored about the user. Missing profile or
// preferences are exported as null.
func (s *ExportService) Export(ctx context.Context, userID string) (*ExportResult, error) {
	u, err := s.identity.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile, err := s.identity.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, common.ErrProfileNotFound) {
		return nil, err
	}
	prefs, err := s.identity.GetPreferences(ctx, userID)
	if err != nil && !errors.Is(err, common.ErrPreferencesNotFound) {
		return nil, err
	}
	actions, err := s.events.Query(ctx, EventFilter{UserID: userID, Limit: exportEventLimit})
	if err != nil {
		return nil, err
	}

	doc := &ExportDocument{
		User: ExportedUser{
			ID: u.ID, Username: u.Username, Email: u.Email,
			Status: u.Status, CreatedAt: u.CreatedAt, LastLogin: u.LastLogin,
		},
		Profile:     profile,
		Preferences: prefs,
		Actions:     actions,
		ExportDate:  s.clock.Now(),
	}
	res := &ExportResult{Document: doc}

	if s.archiver != nil {
		body, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode export: %w", err)
		}
		if res.Key, res.URL, err = s.archiver.Archive(ctx, userID, body); err != nil {
			s.logger.Error(ctx, "export archive failed", "user_id", userID, "error", err)
			return nil, fmt.Errorf("archive export: %w", err)
		}
	}

	if _, err := s.events.Append(ctx, userID, models.ActionExport, map[string]any{"archived": res.Key != ""}, models.EventMeta{}); err != nil {
		s.logger.Warn(ctx, "event not recorded", "user_id", userID, "kind", models.ActionExport, "error", err)
	}
	return res, nil
}

// S3Archiver uploads exports to an S3-compatible bucket and hands out
// short-lived presigned download links.
type S3Archiver struct {
	config *sc.Config
	clock  common.Clock
	expiry time.Duration
}

func NewS3Archiver(cfg *sc.Config, clock common.Clock) *S3Archiver {
	return &S3Archiver{config: cfg, clock: clock, expiry: 15 * time.Minute}
}

// ExportKey lays exports out by user and day.
func ExportKey(userID string, t time.Time) string {
	return fmt.Sprintf("exports/%s/%04d/%02d/%02d/%s.json", userID, t.Year(), t.Month(), t.Day(), uuid.New())
}

func (a *S3Archiver) client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(a.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			a.config.S3RootUser,
			a.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}
	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(a.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

func (a *S3Archiver) Archive(ctx context.Context, userID string, body []byte) (string, string, error) {
	client, err := a.client(ctx)
	if err != nil {
		return "", "", fmt.Errorf("s3 config: %w", err)
	}

	bucket := a.config.S3Bucket
	key := ExportKey(userID, a.clock.Now())

	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return "", "", fmt.Errorf("put object: %w", err)
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(a.expiry))
	if err != nil {
		return "", "", fmt.Errorf("presign get: %w", err)
	}
	return key, req.URL, nil
}
