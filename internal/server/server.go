package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"docsign/internal/audit"
	"docsign/internal/binder"
	"docsign/internal/config"
	"docsign/internal/database"
	"docsign/internal/documents"
	"docsign/internal/logger"
	"docsign/internal/models"
	"docsign/internal/notify"
	"docsign/internal/render"
	"docsign/internal/signature"
	"docsign/internal/storage"
	"docsign/internal/templates"
	"docsign/internal/validation"
)

// Deps are the connections the server is built on. Only Models is required.
type Deps struct {
	Models   *models.DB
	DB       database.Service
	S3       *storage.S3Service
	Cache    *validation.RedisCache
	Notifier notify.Publisher
	Resolver signature.IPResolver
}

type Server struct {
	cfg       *config.Config
	log       *logger.Logger
	models    *models.DB
	db        database.Service
	s3Service *storage.S3Service
	cache     *validation.RedisCache
	notifier  notify.Publisher

	templates  *templates.Service
	documents  *documents.Service
	signatures *signature.Engine
	validation *validation.Service
	audit      *audit.Recorder
}

// New wires the document services on top of deps.
func New(cfg *config.Config, log *logger.Logger, deps Deps) (*Server, error) {
	if deps.Models == nil {
		return nil, fmt.Errorf("server: models database is required")
	}
	formatter, err := render.NewFormatter(cfg.Documents.Locale, cfg.Documents.Currency, cfg.Documents.Timezone)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}

	s := &Server{
		cfg:       cfg,
		log:       log,
		models:    deps.Models,
		db:        deps.DB,
		s3Service: deps.S3,
		cache:     deps.Cache,
		notifier:  deps.Notifier,
	}

	// Lead lookups and public validation read through the pgx pool when one
	// is configured; otherwise entity binding is off and GORM serves lookups.
	var (
		entities binder.EntityProvider
		finder   validation.Finder = validation.GormFinder{DB: deps.Models}
		cache    validation.Cache
	)
	if deps.DB != nil {
		entities = deps.DB
		finder = validation.PgxFinder{DB: deps.DB}
	}
	if deps.Cache != nil {
		cache = deps.Cache
	}
	s.validation = validation.NewService(finder, cache, log)

	s.audit = audit.NewRecorder(deps.Models, log)
	s.templates = templates.NewService(deps.Models, s.audit, log)

	opts := documents.Options{
		Notifier:     deps.Notifier,
		Invalidator:  s.validation,
		AuditDeletes: cfg.Documents.AuditDeletes,
	}
	var images signature.ImageStore
	if deps.S3 != nil {
		opts.Archiver = deps.S3
		opts.Images = deps.S3
		images = deps.S3
	}
	s.documents = documents.NewService(deps.Models, binder.New(entities, formatter.Location()), formatter, s.audit, log, opts)
	s.signatures = signature.NewEngine(s.documents, images, deps.Resolver, cfg.Signature.IPLookupTimeout, log)

	return s, nil
}

func (s *Server) GetTemplates() *templates.Service   { return s.templates }
func (s *Server) GetDocuments() *documents.Service   { return s.documents }
func (s *Server) GetSignatures() *signature.Engine   { return s.signatures }
func (s *Server) GetValidation() *validation.Service { return s.validation }
func (s *Server) GetAudit() *audit.Recorder          { return s.audit }
func (s *Server) GetLogger() *logger.Logger          { return s.log }

// Health reports every backing store. ok is false when a required store is
// down; optional stores only degrade the report.
func (s *Server) Health(ctx context.Context) (map[string]any, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	ok := true
	report := map[string]any{}

	if err := s.models.Ping(ctx); err != nil {
		ok = false
		report["database"] = map[string]string{"status": "down", "error": err.Error()}
	} else {
		dbReport := map[string]string{"status": "up"}
		if version, ok := s.models.SchemaVersion(); ok {
			dbReport["schema_version"] = strconv.FormatUint(uint64(version), 10)
		}
		report["database"] = dbReport
	}
	if s.db != nil {
		pool := s.db.Health(ctx)
		if pool["status"] != "up" {
			ok = false
		}
		report["pool"] = pool
	}
	if s.s3Service != nil {
		report["storage"] = componentStatus(s.s3Service.Ping(ctx))
	}
	if s.cache != nil {
		report["cache"] = componentStatus(s.cache.Ping(ctx))
	}

	if ok {
		report["status"] = "up"
	} else {
		report["status"] = "down"
	}
	return report, ok
}

func componentStatus(err error) map[string]string {
	if err != nil {
		return map[string]string{"status": "degraded", "error": err.Error()}
	}
	return map[string]string{"status": "up"}
}

// NewServer returns the HTTP server for s.
func (s *Server) NewServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  s.cfg.Server.IdleTimeout,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
}

// Close releases the connections handed to New.
func (s *Server) Close() {
	s.notifier.Close()
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.log.Warn("failed to close validation cache", "error", err)
		}
	}
	if s.db != nil {
		s.db.Close()
	}
	if err := s.models.Close(); err != nil {
		s.log.Warn("failed to close database", "error", err)
	}
}
