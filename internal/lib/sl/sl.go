// Package sl содержит вспомогательные функции для работы с логгером slog.
// Основная задача — единообразное формирование структурированных полей,
// в первую очередь поля с ошибкой.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и текстом ошибки.
//
// Пример:
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}
