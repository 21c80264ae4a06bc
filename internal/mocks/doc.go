// Package mocks provides centralized mock implementations for testing.
//
// This package contains mock implementations of the collaborator interfaces the
// task executor depends on, so that tests of the executor and of its callers can
// share one set of consistent fakes instead of redefining them inline.
//
// Usage:
//
// Import the mocks package in your test file and create the required mock:
//
//	import "github.com/phrazzld/taskexport/internal/mocks"
//
//	func TestSomething(t *testing.T) {
//	    conns := &mocks.MockConnectionProvider{
//	        Conn: &mocks.MockConn{
//	            Rows: mocks.NewMockRows([]string{"id"}, []any{int64(1)}),
//	        },
//	    }
//
//	    // Use the mock in your test...
//	}
//
// Every mock exposes XxxFn fields to override behavior and records its calls
// for verification.
package mocks
