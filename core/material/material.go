package material

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/authz"
	"github.com/trezcool/quizhub/core/catalog"
)

// Material types
const (
	TypeFile = "file"
	TypeLink = "link"
	TypeText = "text"
)

var (
	NowFunc = time.Now // mockable

	ErrNotFound    = core.NewNotFoundError("material")
	errFileMissing = errors.New("a file is required for file materials")
)

type Material struct {
	ID           int         `json:"id" db:"id"`
	ChapterID    int         `json:"chapter_id" db:"chapter_id"`
	Title        string      `json:"title" db:"title"`
	Description  string      `json:"description" db:"description"`
	MaterialType string      `json:"material_type" db:"material_type"`
	FilePath     null.String `json:"file_path" db:"file_path"`
	FileType     null.String `json:"file_type" db:"file_type"`
	FileSize     null.Int64  `json:"file_size" db:"file_size"`
	ExternalURL  null.String `json:"external_url" db:"external_url"`
	UploadedBy   int         `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}

type NewMaterial struct {
	Title        string `json:"title" form:"title" validate:"required"`
	Description  string `json:"description" form:"description"`
	MaterialType string `json:"material_type" form:"material_type" validate:"required,oneof=file link text"`
	ExternalURL  string `json:"external_url" form:"external_url" validate:"required_if=MaterialType link,omitempty,url"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	nm.MaterialType = core.CleanString(nm.MaterialType, true /* lower */)
	if nm.MaterialType == "" {
		nm.MaterialType = TypeFile
	}
	nm.ExternalURL = core.CleanString(nm.ExternalURL)
	return validate.Struct(nm)
}

// Upload is the file part of a new material.
type Upload struct {
	Filename string
	Content  io.Reader
}

type Repository interface {
	CreateMaterial(ctx context.Context, m Material) (Material, error)
	GetMaterial(ctx context.Context, id int) (Material, error)
	// QueryMaterials returns a chapter's materials newest first.
	QueryMaterials(ctx context.Context, chapterID int) ([]Material, error)
	DeleteMaterial(ctx context.Context, id int) error
}

type Service struct {
	repo    Repository
	files   core.FileStore
	catalog *catalog.Service
	policy  *authz.Policy
	logger  core.Logger
}

func NewService(repo Repository, files core.FileStore, catalogSvc *catalog.Service, policy *authz.Policy, logger core.Logger) *Service {
	return &Service{repo: repo, files: files, catalog: catalogSvc, policy: policy, logger: logger}
}

func (svc *Service) List(ctx context.Context, actor authz.Actor, chapterID int) ([]Material, error) {
	subjectID, err := svc.catalog.SubjectOfChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if err := svc.policy.RequireViewSubject(ctx, actor, subjectID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMaterials(ctx, chapterID)
}

// Add stores a material; `up` is only used by file materials.
func (svc *Service) Add(ctx context.Context, actor authz.Actor, chapterID int, nm NewMaterial, up *Upload) (Material, error) {
	subjectID, err := svc.catalog.SubjectOfChapter(ctx, chapterID)
	if err != nil {
		return Material{}, err
	}
	if err := svc.policy.RequireManageSubject(ctx, actor, subjectID); err != nil {
		return Material{}, err
	}

	m := Material{
		ChapterID:    chapterID,
		Title:        nm.Title,
		Description:  nm.Description,
		MaterialType: nm.MaterialType,
		UploadedBy:   actor.ID,
		CreatedAt:    NowFunc().UTC(),
	}
	switch nm.MaterialType {
	case TypeFile:
		if up == nil || up.Filename == "" {
			return Material{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: errFileMissing.Error()})
		}
		name := core.TimestampedFilename(up.Filename, NowFunc())
		stored, size, err := svc.files.Save(ctx, name, up.Content)
		if err != nil {
			return Material{}, errors.Wrap(err, "saving file")
		}
		m.FilePath = null.StringFrom(stored)
		m.FileType = null.StringFrom(fileType(up.Filename))
		m.FileSize = null.Int64From(size)
	case TypeLink:
		m.ExternalURL = null.StringFrom(nm.ExternalURL)
	}

	created, err := svc.repo.CreateMaterial(ctx, m)
	if err != nil {
		if m.FilePath.Valid {
			_ = svc.files.Delete(ctx, m.FilePath.String)
		}
		return Material{}, errors.Wrap(err, "creating material")
	}
	return created, nil
}

func (svc *Service) Delete(ctx context.Context, actor authz.Actor, id int) error {
	m, err := svc.repo.GetMaterial(ctx, id)
	if err != nil {
		return err
	}
	subjectID, err := svc.catalog.SubjectOfChapter(ctx, m.ChapterID)
	if err != nil {
		return err
	}
	if err := svc.policy.RequireManageSubject(ctx, actor, subjectID); err != nil {
		return err
	}
	if err := svc.repo.DeleteMaterial(ctx, id); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	if m.FilePath.Valid {
		if err := svc.files.Delete(ctx, m.FilePath.String); err != nil && errors.Cause(err) != core.ErrFileNotFound {
			svc.logger.Warn("material.Delete: removing file", err)
		}
	}
	return nil
}

// Open returns the file of a file material.
func (svc *Service) Open(ctx context.Context, actor authz.Actor, id int) (Material, io.ReadCloser, error) {
	m, err := svc.repo.GetMaterial(ctx, id)
	if err != nil {
		return Material{}, nil, err
	}
	subjectID, err := svc.catalog.SubjectOfChapter(ctx, m.ChapterID)
	if err != nil {
		return Material{}, nil, err
	}
	if err := svc.policy.RequireViewSubject(ctx, actor, subjectID); err != nil {
		return Material{}, nil, err
	}
	if !m.FilePath.Valid {
		return Material{}, nil, ErrNotFound
	}
	rc, err := svc.files.Open(ctx, m.FilePath.String)
	if err != nil {
		if errors.Cause(err) == core.ErrFileNotFound {
			return Material{}, nil, ErrNotFound
		}
		return Material{}, nil, err
	}
	return m, rc, nil
}

// OpenByName serves a stored file by name; path components are dropped before lookup.
func (svc *Service) OpenByName(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := svc.files.Open(ctx, filepath.Base(name))
	if err != nil && errors.Cause(err) == core.ErrFileNotFound {
		return nil, ErrNotFound
	}
	return rc, err
}

func fileType(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}
