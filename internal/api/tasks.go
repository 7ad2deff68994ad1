package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/insuratask/insuratask/internal/instrumentation"
	"github.com/insuratask/insuratask/internal/store"
	"github.com/insuratask/insuratask/internal/task"
)

// taskQuery is the query string of GET /api/tasks.
type taskQuery struct {
	Status    store.Status   `form:"status"`
	Category  store.Category `form:"category"`
	Priority  store.Priority `form:"priority"`
	Client    string         `form:"client"`
	Completed *bool          `form:"completed"`
	Search    string         `form:"search"`
	DueFrom   string         `form:"dueFrom"`
	DueTo     string         `form:"dueTo"`
	// Overdue keeps only incomplete tasks due before today.
	Overdue bool `form:"overdue"`
	Limit   int  `form:"limit"`
}

func (q taskQuery) validate() error {
	fields := map[string]string{}
	if q.Status != "" && !q.Status.Valid() {
		fields["status"] = "unknown status"
	}
	if q.Category != "" && !q.Category.Valid() {
		fields["category"] = "unknown category"
	}
	if q.Priority != "" && !q.Priority.Valid() {
		fields["priority"] = "unknown priority"
	}
	if q.DueFrom != "" && !task.ValidDate(q.DueFrom) {
		fields["dueFrom"] = "must be in YYYY-MM-DD format"
	}
	if q.DueTo != "" && !task.ValidDate(q.DueTo) {
		fields["dueTo"] = "must be in YYYY-MM-DD format"
	}
	if q.Limit < 0 {
		fields["limit"] = "must not be negative"
	}
	if len(fields) > 0 {
		return &task.ValidationError{Fields: fields}
	}
	return nil
}

// apiContext tags task mutations made through the REST API.
func apiContext(c *gin.Context) context.Context {
	return task.WithSource(c.Request.Context(), instrumentation.SourceAPI)
}

func (a *API) listTasks(c *gin.Context) error {
	var q taskQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return badRequest("invalid query: " + err.Error())
	}
	if err := q.validate(); err != nil {
		return err
	}
	filter := store.TaskFilter{
		Status:    q.Status,
		Category:  q.Category,
		Priority:  q.Priority,
		Client:    q.Client,
		Completed: q.Completed,
		Search:    q.Search,
		DueFrom:   q.DueFrom,
		DueTo:     q.DueTo,
		Limit:     q.Limit,
	}
	if q.Overdue {
		filter.OverdueBefore = a.svc.Tasks.Today()
	}
	tasks, err := a.svc.Tasks.List(c.Request.Context(), filter)
	if err != nil {
		return err
	}
	list(c, tasks)
	return nil
}

func (a *API) createTask(c *gin.Context) error {
	var in task.CreateInput
	if err := bindJSON(c, &in, false); err != nil {
		return err
	}
	t, err := a.svc.Tasks.Create(apiContext(c), in)
	if err != nil {
		return err
	}
	c.JSON(http.StatusCreated, t)
	return nil
}

func (a *API) getTask(c *gin.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	t, err := a.svc.Tasks.Get(c.Request.Context(), id)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, t)
	return nil
}

func (a *API) updateTask(c *gin.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in task.UpdateInput
	if err := bindJSON(c, &in, false); err != nil {
		return err
	}
	t, err := a.svc.Tasks.Update(apiContext(c), id, in)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, t)
	return nil
}

func (a *API) toggleTask(c *gin.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	t, err := a.svc.Tasks.ToggleComplete(apiContext(c), id)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, t)
	return nil
}

func (a *API) deleteTask(c *gin.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := a.svc.Tasks.Delete(apiContext(c), id); err != nil {
		return err
	}
	c.Status(http.StatusNoContent)
	return nil
}

func (a *API) taskStats(c *gin.Context) error {
	st, err := a.svc.Tasks.Stats(c.Request.Context())
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, st)
	return nil
}

func (a *API) overdueTasks(c *gin.Context) error {
	tasks, err := a.svc.Tasks.Overdue(c.Request.Context())
	if err != nil {
		return err
	}
	list(c, tasks)
	return nil
}

func (a *API) todayTasks(c *gin.Context) error {
	tasks, err := a.svc.Tasks.DueToday(c.Request.Context())
	if err != nil {
		return err
	}
	list(c, tasks)
	return nil
}

func (a *API) calendarMonth(c *gin.Context) error {
	month := c.Query("month")
	days, err := a.svc.Tasks.CalendarMonth(c.Request.Context(), month)
	if err != nil {
		return err
	}
	if month == "" {
		month = a.svc.Tasks.Today()[:len(task.MonthLayout)]
	}
	c.JSON(http.StatusOK, gin.H{"month": month, "days": days})
	return nil
}
