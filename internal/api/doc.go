// Package api is the gin REST layer over the task, template, export and
// calendar sync services.
//
// Successful responses carry the resource, or {"data": [...], "count": n}
// for collections. Failures carry {"error": "...", "details": {...}} with a
// status code chosen in one place from the error type; see statusFor.
package api
