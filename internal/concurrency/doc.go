// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lock-free primitives shared by the buffer pool and the reactor's
// pending-wake queue.
package concurrency
