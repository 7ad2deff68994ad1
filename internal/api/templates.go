package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/insuratask/insuratask/internal/templates"
)

const (
	defaultInstanceLimit = 50
	maxImportSize        = 1 << 20
)

type previewRequest struct {
	templates.Input
	Overrides map[string]string `json:"overrides"`
}

type executeRequest struct {
	Variables map[string]string `json:"variables"`
}

func (a *API) listTemplates(c *gin.Context) error {
	all, err := a.svc.Templates.List(c.Request.Context())
	if err != nil {
		return err
	}
	list(c, all)
	return nil
}

func (a *API) createTemplate(c *gin.Context) error {
	var in templates.Input
	if err := bindJSON(c, &in, false); err != nil {
		return err
	}
	t, err := a.svc.Templates.Create(c.Request.Context(), in)
	if err != nil {
		return err
	}
	c.JSON(http.StatusCreated, t)
	return nil
}

func (a *API) getTemplate(c *gin.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	t, err := a.svc.Templates.Get(c.Request.Context(), id)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, t)
	return nil
}

func (a *API) updateTemplate(c *gin.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in templates.Input
	if err := bindJSON(c, &in, false); err != nil {
		return err
	}
	t, err := a.svc.Templates.Update(c.Request.Context(), id, in)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, t)
	return nil
}

func (a *API) deleteTemplate(c *gin.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := a.svc.Templates.Delete(c.Request.Context(), id); err != nil {
		return err
	}
	c.Status(http.StatusNoContent)
	return nil
}

func (a *API) previewTemplate(c *gin.Context) error {
	var req previewRequest
	if err := bindJSON(c, &req, false); err != nil {
		return err
	}
	p, err := a.svc.Templates.Preview(req.Input, req.Overrides)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, p)
	return nil
}

func (a *API) executeTemplate(c *gin.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req executeRequest
	if err := bindJSON(c, &req, true); err != nil {
		return err
	}
	exec, err := a.svc.Templates.Execute(apiContext(c), id, req.Variables, templates.TriggerManual)
	if err != nil {
		return err
	}
	c.JSON(http.StatusCreated, exec)
	return nil
}

func (a *API) templateInstances(c *gin.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	limit := defaultInstanceLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return badRequest("limit must be a positive integer")
		}
		limit = n
	}
	instances, err := a.svc.Templates.Instances(c.Request.Context(), id, limit)
	if err != nil {
		return err
	}
	list(c, instances)
	return nil
}

func (a *API) exportTemplates(c *gin.Context) error {
	data, err := a.svc.Templates.Export(c.Request.Context())
	if err != nil {
		return err
	}
	c.Header("Content-Disposition", `attachment; filename="templates.yaml"`)
	c.Data(http.StatusOK, "application/yaml", data)
	return nil
}

func (a *API) importTemplates(c *gin.Context) error {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize+1))
	if err != nil {
		return badRequest("failed to read body")
	}
	if len(data) > maxImportSize {
		return badRequest("import exceeds 1MB")
	}
	overwrite := c.Query("overwrite") == "true"
	res, err := a.svc.Templates.Import(c.Request.Context(), data, overwrite)
	if err != nil {
		return badRequest(err.Error())
	}
	c.JSON(http.StatusOK, res)
	return nil
}
