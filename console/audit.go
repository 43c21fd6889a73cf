package console

import (
	"context"
	"time"

	"carshop/shop"
)

func (c *Console) auditMenu(ctx context.Context, sess *shop.Session) error {
	return c.subMenu(ctx, sess, "Управление аудитом", []menuItem{
		{"Просмотреть все записи аудита", func(ctx context.Context, sess *shop.Session) error {
			return c.showAudit(c.shop.AuditLogs(ctx, sess))
		}},
		{"Сортировка по пользователям", func(ctx context.Context, sess *shop.Session) error {
			logs, err := c.shop.AuditLogs(ctx, sess)
			return c.showAudit(shop.SortAuditByUsername(logs), err)
		}},
		{"Сортировка по дате", func(ctx context.Context, sess *shop.Session) error {
			logs, err := c.shop.AuditLogs(ctx, sess)
			return c.showAudit(shop.SortAuditByDate(logs), err)
		}},
		{"Экспортировать журнал действий", c.exportAudit},
		{"Записи за день", c.auditByDay},
	})
}

func (c *Console) exportAudit(ctx context.Context, sess *shop.Session) error {
	name, err := c.readLine("\nВведите имя файла для экспорта: ")
	if err != nil {
		return err
	}
	if name == "" {
		c.println("\nИмя файла не может быть пустым.")
		return nil
	}
	if err := c.shop.ExportAuditFile(ctx, sess, name); err != nil {
		c.println("\nОшибка при экспорте журнала действий.")
		return err
	}
	c.println("\nЖурнал действий экспортирован в файл: " + name)
	return nil
}

const dayLayout = "2006-01-02"

func (c *Console) auditByDay(ctx context.Context, sess *shop.Session) error {
	// the permission check lives in AuditLogs
	if _, err := c.shop.AuditLogs(ctx, sess); err != nil {
		return err
	}
	for {
		s, err := c.readLine("\nВведите дату (ГГГГ-ММ-ДД): ")
		if err != nil {
			return err
		}
		day, err := time.ParseInLocation(dayLayout, s, time.Local)
		if err != nil {
			c.println("\nНеверный формат даты.")
			continue
		}
		return c.showAudit(c.shop.Audit.AuditLogsByDay(ctx, day))
	}
}

func (c *Console) showAudit(logs []shop.Audit, err error) error {
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		c.println("\nНет записей аудита.")
		return nil
	}
	c.println("")
	for _, a := range logs {
		c.println(shop.FormatAudit(a))
	}
	return nil
}
