package llm

import (
	"strings"
	"time"

	"vidstats/internal/catalog"
)

const planPromptTemplate = `Ты преобразуешь русский запрос пользователя в JSON-план для расчета одной числовой метрики по PostgreSQL.

Схема данных:
{schema}

Нужно вернуть только JSON без markdown.

Формат JSON:
{
  "source": "videos" | "video_snapshots",
  "aggregation": "count_rows" | "count_distinct" | "sum" | "sum_delta_in_window",
  "field": "*" | {fields},
  "hours": 3,
  "filters": [
    {
      "field": "точное имя поля",
      "op": "eq" | "gt" | "gte" | "lt" | "lte" | "date_on" | "date_between",
      "value": "значение для eq/gt/gte/lt/lte/date_on",
      "from": "YYYY-MM-DD для date_between",
      "to": "YYYY-MM-DD для date_between"
    }
  ]
}

Правила:
- Ответ всегда одно число, поэтому выбирай только одну агрегацию.
- Для вопросов "сколько всего видео" используй source=videos, aggregation=count_rows.
- Для "сколько разных видео ..." используй aggregation=count_distinct и field=video_id.
- Для "выросли просмотры/лайки/комментарии/жалобы" используй таблицу video_snapshots и соответствующее поле delta_*.
- Для "набрало больше N просмотров за все время" используй videos.views_count > N.
- Для вопросов про "вышло" и период публикации используй videos.video_created_at с date_between.
- Для даты вида "28 ноября 2025" используй date_on. Даты и диапазоны включительны.
- Диапазон "с 1 по 5 ноября 2025" преобразуй в date_between и восстанови месяц/год для обеих дат.
- Для "за первые N часов после публикации" используй aggregation=sum_delta_in_window, source=video_snapshots, field=delta_*, hours=N.
- Поле hours указывай только для sum_delta_in_window, в остальных случаях не добавляй его.
- Не выдумывай поля и таблицы.
- Не добавляй объяснений.

Текущая дата UTC: {today}`

const sqlPromptTemplate = `Ты конвертируешь вопрос на русском в один SQL для PostgreSQL 16.
Текущая дата UTC: {today}.

Схема:
{compact}

Правила:
1) Итоговые значения за все время бери из videos.
2) Прирост/новые за день или период бери из video_snapshots по delta_*.
3) "Сколько разных видео получали новые просмотры" = COUNT(DISTINCT video_id) и delta_views_count > 0.
4) Дата публикации видео: videos.video_created_at.
5) Активность/прирост по времени: video_snapshots.created_at.
6) Одна дата и диапазон дат включительны и сравниваются как календарные даты UTC:
   col::date = DATE 'YYYY-MM-DD'
   col::date BETWEEN DATE 'YYYY-MM-DD' AND DATE 'YYYY-MM-DD'
7) Возвращай одну числовую колонку value.
8) Для SUM используй COALESCE(SUM(...), 0).
9) Только SELECT. Без объяснений, markdown, комментариев, лишнего текста.

Примеры:
Q: Сколько всего видео есть в системе?
SQL: SELECT COUNT(*)::bigint AS value FROM videos

Q: Сколько видео у креатора с id abc123 вышло с 1 ноября 2025 по 5 ноября 2025 включительно?
SQL: SELECT COUNT(*)::bigint AS value FROM videos WHERE creator_id = 'abc123' AND video_created_at::date BETWEEN DATE '2025-11-01' AND DATE '2025-11-05'

Q: Сколько видео набрало больше 100000 просмотров за всё время?
SQL: SELECT COUNT(*)::bigint AS value FROM videos WHERE views_count > 100000

Q: На сколько просмотров в сумме выросли все видео 28 ноября 2025?
SQL: SELECT COALESCE(SUM(delta_views_count), 0)::bigint AS value FROM video_snapshots WHERE created_at::date = DATE '2025-11-28'

Q: Сколько разных видео получали новые просмотры 27 ноября 2025?
SQL: SELECT COUNT(DISTINCT video_id)::bigint AS value FROM video_snapshots WHERE delta_views_count > 0 AND created_at::date = DATE '2025-11-27'

Q: Сколько всего лайков у всех видео за всё время?
SQL: SELECT COALESCE(SUM(likes_count), 0)::bigint AS value FROM videos

Q: На сколько в сумме выросли лайки с 1 ноября 2025 по 3 ноября 2025?
SQL: SELECT COALESCE(SUM(delta_likes_count), 0)::bigint AS value FROM video_snapshots WHERE created_at::date BETWEEN DATE '2025-11-01' AND DATE '2025-11-03'

Верни только SQL-запрос.`

const classifyPrompt = `Ты классифицируешь пользовательский вопрос.
Верни только YES или NO.
YES: вопрос про метрики видео/снапшотов, количество/сумму/прирост/фильтрацию по дате/креатору/id.
NO: приветствия, мат, оффтоп, бессмысленный текст, команды вне аналитики.`

// PlanPrompt renders the structured-plan system prompt for the given day.
func PlanPrompt(now time.Time) string {
	return strings.NewReplacer(
		"{schema}", catalog.SchemaDescription(),
		"{fields}", quotedFieldNames(),
		"{today}", now.UTC().Format(time.DateOnly),
	).Replace(planPromptTemplate)
}

// SQLPrompt renders the direct-SQL system prompt for the given day.
func SQLPrompt(now time.Time) string {
	return strings.NewReplacer(
		"{compact}", catalog.CompactSchema(),
		"{today}", now.UTC().Format(time.DateOnly),
	).Replace(sqlPromptTemplate)
}

// RepairPrompt asks the model to fix SQL the validator rejected.
func RepairPrompt(question, sql string, cause error) string {
	return "Исправь SQL под ограничения.\n" +
		"Вопрос:\n" + question + "\n\n" +
		"SQL:\n" + sql + "\n\n" +
		"Ошибка валидации:\n" + cause.Error() + "\n\n" +
		"Верни только исправленный SQL."
}

func quotedFieldNames() string {
	seen := make(map[string]bool)
	var names []string
	for _, src := range []*catalog.Source{catalog.Videos(), catalog.Snapshots()} {
		for _, f := range src.Fields() {
			if !seen[f.Name] {
				seen[f.Name] = true
				names = append(names, `"`+f.Name+`"`)
			}
		}
	}
	return strings.Join(names, " | ")
}
