// Package sl содержит вспомогательные функции для работы с логгером slog.
// Основная цель — единообразно формировать структурированные поля лога:
// ошибки, имя операции, идентификатор пользователя.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и текстом ошибки.
// Для nil возвращает пустую строку, чтобы вызов можно было не оборачивать проверкой.
//
// Пример:
//
//	log.Error("failed to submit remark", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Op возвращает атрибут с именем операции.
func Op(op string) slog.Attr {
	return slog.String("op", op)
}

// User возвращает атрибут с UID пользователя.
func User(uid string) slog.Attr {
	return slog.String("user_uid", uid)
}
