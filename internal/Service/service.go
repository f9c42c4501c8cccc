package Service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/JonnyShabli/registry-mailer/internal/Service/fetcher"
	"github.com/JonnyShabli/registry-mailer/internal/Service/jobs"
	"github.com/JonnyShabli/registry-mailer/internal/Service/mailer"
	"github.com/JonnyShabli/registry-mailer/internal/Service/spreadsheet"
	"github.com/JonnyShabli/registry-mailer/internal/Service/validator"
	"github.com/JonnyShabli/registry-mailer/internal/models"
	"github.com/JonnyShabli/registry-mailer/internal/repository"
	"github.com/JonnyShabli/registry-mailer/pkg/logster"
)

const (
	EmailColumn      = "email"
	NoRecipientsText = "No valid emails found in the Excel file."
	uploadTimeLayout = "20060102_150405"
)

type ServiceInterface interface {
	StartExtraction(ctx context.Context, req models.ExtractionRequest) (string, error)
	SendEmails(ctx context.Context, req models.SendRequest, upload io.Reader, uploadName string) (string, error)
	GetStatus(ctx context.Context, kind, id string) (*models.Status, error)
	FileHistory(ctx context.Context) ([]string, error)
	ResolveFile(ctx context.Context, filename string) (string, error)
}

type ServiceObj struct {
	db        repository.StorageInterface
	runner    jobs.RunnerInterface
	fetcher   fetcher.FetcherInterface
	workspace spreadsheet.WorkspaceInterface
	mailer    mailer.MailerInterface
	logger    logster.Logger
	now       func() time.Time
}

func NewServiceObj(
	db repository.StorageInterface,
	runner jobs.RunnerInterface,
	fetcher fetcher.FetcherInterface,
	workspace spreadsheet.WorkspaceInterface,
	mailer mailer.MailerInterface,
	logger logster.Logger,
) *ServiceObj {
	return &ServiceObj{
		db:        db,
		runner:    runner,
		fetcher:   fetcher,
		workspace: workspace,
		mailer:    mailer,
		logger:    logger.WithField("Layer", "Service"),
		now:       time.Now,
	}
}

// StartExtraction registers an extraction task and returns its id without
// waiting for the registry walk.
func (z *ServiceObj) StartExtraction(ctx context.Context, req models.ExtractionRequest) (string, error) {
	id, err := z.runner.Submit(ctx, models.KindExtraction, z.extractionJob(req))
	if err != nil {
		z.logger.WithError(err).Errorf("StartExtraction failed")
		return "", err
	}
	z.logger.Infof("extraction %s started for region %s", id, regionToken(req))
	return id, nil
}

func (z *ServiceObj) extractionJob(req models.ExtractionRequest) jobs.JobFunc {
	return func(ctx context.Context, id string, progress jobs.ProgressFunc) (models.Outcome, error) {
		records, err := z.fetcher.FetchAll(ctx, req.Region, func(page, total int) {
			progress("Processed page %d of %d", page, total)
		})
		if err != nil {
			return models.Outcome{}, err
		}

		path, filename, err := z.workspace.Export(records, "region_"+regionToken(req)+"_"+shortId(id))
		if err != nil {
			return models.Outcome{}, err
		}
		return models.Outcome{
			Message:  fmt.Sprintf("Extraction complete: %d records exported.", len(records)),
			FilePath: path,
			FileName: filename,
		}, nil
	}
}

// SendEmails stores the upload first and then starts the send job on it.
// Malformed SMTP settings and non-workbook uploads are refused before any
// task exists.
func (z *ServiceObj) SendEmails(ctx context.Context, req models.SendRequest, upload io.Reader, uploadName string) (string, error) {
	if err := ValidateSendRequest(req); err != nil {
		return "", err
	}
	if err := spreadsheet.CheckUploadName(uploadName); err != nil {
		return "", err
	}

	id, err := z.db.AddTask(ctx, models.KindSendEmails)
	if err != nil {
		z.logger.WithError(err).Errorf("SendEmails: add task failed")
		return "", err
	}

	prefix := z.now().Format(uploadTimeLayout) + "_" + shortId(id)
	path, err := z.workspace.SaveUpload(upload, uploadName, prefix)
	if err != nil {
		z.logger.WithError(err).Errorf("SendEmails: saving upload failed")
		z.runner.Fail(id, err)
		return "", err
	}

	if err := z.runner.Launch(id, z.sendJob(req, path)); err != nil {
		return "", err
	}
	z.logger.Infof("send job %s started via %s:%d", id, req.SMTP.Host, req.SMTP.Port)
	return id, nil
}

func (z *ServiceObj) sendJob(req models.SendRequest, uploadPath string) jobs.JobFunc {
	return func(ctx context.Context, _ string, progress jobs.ProgressFunc) (models.Outcome, error) {
		values, err := z.workspace.ReadColumn(uploadPath, EmailColumn)
		if err != nil {
			return models.Outcome{}, err
		}
		recipients := validator.FilterRecipients(values)
		if len(recipients) == 0 {
			return models.Outcome{}, models.NewNoDataError(NoRecipientsText)
		}

		total := len(recipients)
		progress("Sent %d of %d emails", 0, total)
		sent, err := z.mailer.SendAll(ctx, req.SMTP, recipients, req.Subject, req.BodyHTML, func(i, n int) {
			progress("Sent %d of %d emails", i, n)
		})
		if err != nil {
			return models.Outcome{}, err
		}
		return models.Outcome{
			Message: fmt.Sprintf("Successfully sent emails to %d recipients.", sent),
		}, nil
	}
}

// GetStatus returns the polling view of a task. A non-empty kind hides tasks
// of other kinds.
func (z *ServiceObj) GetStatus(ctx context.Context, kind, id string) (*models.Status, error) {
	task, err := z.db.GetTask(ctx, id)
	if err != nil {
		z.logger.WithError(err).Warnf("GetTask %s error", id)
		return nil, err
	}
	if kind != "" && task.Kind != kind {
		z.logger.Warnf("GetTask: %s is a %s task, not %s", id, task.Kind, kind)
		return nil, models.ErrTaskNotFound
	}

	status := task.ToStatus()
	z.logger.Debugf("Get status succesfully with status: %s", task.Status)
	return &status, nil
}

func (z *ServiceObj) FileHistory(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := z.workspace.List()
	if err != nil {
		z.logger.WithError(err).Errorf("FileHistory error")
		return nil, err
	}
	return files, nil
}

func (z *ServiceObj) ResolveFile(ctx context.Context, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return z.workspace.Resolve(filename)
}

// ValidateSendRequest checks the SMTP form fields that must be present
// before a send job can start.
func ValidateSendRequest(req models.SendRequest) error {
	var missing []string
	if strings.TrimSpace(req.SMTP.Host) == "" {
		missing = append(missing, "smtp_host")
	}
	if strings.TrimSpace(req.SMTP.Username) == "" {
		missing = append(missing, "smtp_user")
	}
	if req.SMTP.Password == "" {
		missing = append(missing, "smtp_pass")
	}
	if strings.TrimSpace(req.Subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(req.BodyHTML) == "" {
		missing = append(missing, "body_html")
	}
	if len(missing) > 0 {
		return models.NewInputError("missing required fields: "+strings.Join(missing, ", "), nil)
	}
	if req.SMTP.Port < 1 || req.SMTP.Port > 65535 {
		return models.NewInputError(fmt.Sprintf("smtp_port %d is out of range", req.SMTP.Port), nil)
	}
	return nil
}

func regionToken(req models.ExtractionRequest) string {
	switch {
	case strings.TrimSpace(req.RegionName) != "":
		return req.RegionName
	case req.Region != nil:
		return strconv.Itoa(*req.Region)
	default:
		return "all"
	}
}

func shortId(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
