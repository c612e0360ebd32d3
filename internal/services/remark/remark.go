// Package remark — журнал отметок о выполнении задач. Отметка одна на
// (пользователь, задача, дата) и после записи не меняется.
package remark

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
)

// Ledger читает и записывает отметки.
type Ledger struct {
	repo storage.Remarks
}

// New создаёт журнал поверх repo.
func New(repo storage.Remarks) *Ledger {
	return &Ledger{repo: repo}
}

// Exists сообщает, есть ли отметка пользователя по задаче за дату.
func (l *Ledger) Exists(ctx context.Context, uid string, taskID int64, date string) (bool, error) {
	const op = "remark.Exists"
	ok, err := l.repo.RemarkExists(ctx, uid, taskID, date)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// Record записывает отметку через журнал.
func (l *Ledger) Record(ctx context.Context, r *models.Remark) (*models.Remark, error) {
	return Record(ctx, l.repo, r)
}

// Record записывает отметку через repo, например внутри транзакции.
// Повторная отметка возвращает apperr.ErrDuplicateRemark.
func Record(ctx context.Context, repo storage.Remarks, r *models.Remark) (*models.Remark, error) {
	const op = "remark.Record"
	id, err := repo.InsertRemark(ctx, r)
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, apperr.ErrDuplicateRemark
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r.ID = id
	return r, nil
}

// ByPlanAndDate возвращает отметки пользователя по плану за дату.
func (l *Ledger) ByPlanAndDate(ctx context.Context, uid string, planID int64, date string) ([]*models.Remark, error) {
	const op = "remark.ByPlanAndDate"
	res, err := l.repo.RemarksByPlanAndDate(ctx, uid, planID, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// ByUser возвращает все отметки пользователя.
func (l *Ledger) ByUser(ctx context.Context, uid string) ([]*models.Remark, error) {
	const op = "remark.ByUser"
	res, err := l.repo.RemarksByUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// ByUserAndPlan возвращает отметки пользователя по плану.
func (l *Ledger) ByUserAndPlan(ctx context.Context, uid string, planID int64) ([]*models.Remark, error) {
	const op = "remark.ByUserAndPlan"
	res, err := l.repo.RemarksByUserAndPlan(ctx, uid, planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// Covered возвращает даты, за которые есть отметка по задаче, в виде множества ключей taskID/date.
func Covered(remarks []*models.Remark) map[Key]struct{} {
	res := make(map[Key]struct{}, len(remarks))
	for _, r := range remarks {
		res[Key{TaskID: r.TaskID, Date: r.Date}] = struct{}{}
	}
	return res
}

// Key — ключ отметки внутри одного пользователя.
type Key struct {
	TaskID int64
	Date   string
}
