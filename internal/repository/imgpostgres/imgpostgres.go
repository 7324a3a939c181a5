package imgpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/UnendingLoop/ImageVariations/internal/model"
	"github.com/wb-go/wbf/dbpg"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

func (p PostgresRepo) Create(ctx context.Context, n *model.Image) error {
	query := `INSERT INTO user_images (filename, user_id, url, mime_type, created_at)
	VALUES ($1, $2, $3, $4, now())
	RETURNING id, created_at`
	return p.DB.QueryRowContext(ctx, query, n.Filename, n.UserID, n.URL, n.MimeType).Scan(&n.ID, &n.CreatedAt)
}

// CreateBatch - один bulk-insert на всю пачку, частичной записи не бывает
func (p PostgresRepo) CreateBatch(ctx context.Context, batch []model.Image) error {
	if len(batch) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO user_images (filename, user_id, url, mime_type, created_at) VALUES `)

	args := make([]any, 0, len(batch)*4)
	for i, img := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 4
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, now())", base+1, base+2, base+3, base+4)
		args = append(args, img.Filename, img.UserID, img.URL, img.MimeType)
	}

	_, err := p.DB.ExecContext(ctx, sb.String(), args...)
	return err
}

func (p PostgresRepo) Get(ctx context.Context, id int64) (*model.Image, error) {
	query := `SELECT id, filename, user_id, url, mime_type, created_at
	FROM user_images
	WHERE id = $1`
	var image model.Image

	err := p.DB.QueryRowContext(ctx, query, id).Scan(&image.ID,
		&image.Filename,
		&image.UserID,
		&image.URL,
		&image.MimeType,
		&image.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrImageNotFound
		default:
			return nil, err // 500
		}
	}
	return &image, nil
}

func (p PostgresRepo) ListByUser(ctx context.Context, userID int64, req *model.ListRequest) ([]model.ImageSummary, error) {
	query := `SELECT id, filename, url
	FROM user_images
	WHERE user_id = $1
	ORDER BY id
	LIMIT $2
	OFFSET $3`

	offset := (req.Page - 1) * req.Limit

	rows, err := p.DB.QueryContext(ctx, query, userID, req.Limit, offset)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	images := make([]model.ImageSummary, 0, req.Limit)
	for rows.Next() {
		var image model.ImageSummary
		if err := rows.Scan(&image.ID, &image.Filename, &image.URL); err != nil {
			return nil, err
		}
		images = append(images, image)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return images, nil
}

func (p PostgresRepo) HasRole(ctx context.Context, userID int64, role string) (bool, error) {
	query := `SELECT EXISTS (
	SELECT 1 FROM role_user ru
	JOIN roles r ON r.id = ru.role_id
	WHERE ru.user_id = $1 AND r.name = $2)`

	var has bool
	if err := p.DB.QueryRowContext(ctx, query, userID, role).Scan(&has); err != nil {
		return false, err
	}
	return has, nil
}
