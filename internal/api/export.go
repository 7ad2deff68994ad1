package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/insuratask/insuratask/internal/export"
)

func (a *API) exportTasks(c *gin.Context) error {
	format, err := export.ParseFormat(c.Param("format"))
	if err != nil {
		return badRequest(err.Error())
	}
	var f export.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		return badRequest("invalid query: " + err.Error())
	}
	if err := (taskQuery{
		Status: f.Status, Category: f.Category, Priority: f.Priority,
		DueFrom: f.DueFrom, DueTo: f.DueTo,
	}).validate(); err != nil {
		return err
	}

	file, err := a.svc.Export.Export(c.Request.Context(), format, f)
	if err != nil {
		return err
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Header("X-Task-Count", strconv.Itoa(file.Count))
	c.Data(http.StatusOK, file.ContentType, file.Data)
	return nil
}
