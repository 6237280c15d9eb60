// Package session управляет сессиями анкеты.
//
// Service отвечает за:
//   - Загрузку формы и создание flow.Engine на сессию
//   - Возобновление по коду (однократная замена состояния при старте)
//   - Статус сессии и события form_accessed / form_started / form_completed
//   - Отправку анкеты в хранилище
//   - Вытеснение неактивных сессий из памяти
//
// Сохранение и уведомления не откатывают состояние: их ошибки логируются.
package session
