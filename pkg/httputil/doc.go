// Package httputil provides the response helpers of the boxrender HTTP API.
//
// # Errors
//
// Every failed request is answered with a JSON envelope:
//
//	{"error": {"code": "INVALID_FRAME", "message": "frame 9 outside range [0, 3]"}}
//
// [WriteError] derives both the code and the HTTP status from the error
// chain, so handlers return the errors of pkg/errors unchanged:
//
//	if err != nil {
//	    httputil.WriteError(w, err)
//	    return
//	}
//
// # Status mapping
//
//   - INVALID_*: 400
//   - *NOT_FOUND: 404
//   - TIMEOUT: 504
//   - CANCELED: 408
//   - UNSUPPORTED: 501
//   - everything else: 500
package httputil
