// Package export renders task reports as PDF, Excel, CSV and iCalendar files.
package export
