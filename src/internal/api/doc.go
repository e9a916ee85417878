// Package api serves the generated RouterOS scripts and a small JSON API over
// the refresh state.
//
// Script endpoints answer with text/plain RouterOS scripts:
//   - GET /custom.rsc  one list holding the whole selection
//   - GET /geoip.rsc   one list per country and per zone
//   - GET /loader.rsc  an installer that fetches a script on a schedule
//
// JSON endpoints live under /api/v1. Successful responses wrap data in a
// "data" field:
//
//	{
//	  "data": { /* response payload */ }
//	}
//
// Errors use the following format, including failed script requests:
//
//	{
//	  "error": {
//	    "code": "EMPTY_SELECTION",
//	    "message": "Human-readable error message",
//	    "details": { /* optional context */ }
//	  }
//	}
package api
