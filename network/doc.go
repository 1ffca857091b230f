// Package network moves block records between processes over ZeroMQ.
//
// Records travel as Arrow IPC streams, one stream per message, over a
// PUSH/PULL pipe:
//   - Pusher: encodes record batches and sends them, then an empty frame
//     marking the end of the stream
//   - ZmqSource: receives the stream and yields each row as a record, so it
//     can feed the writer pipeline directly
package network
