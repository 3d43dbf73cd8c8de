package api

import (
	"io"
	"net/rpc"

	"github.com/hashicorp/go-msgpack/v2/codec"
	msgpackrpc "github.com/hashicorp/net-rpc-msgpackrpc/v2"
)

// msgpackHandle is the shared handle for the robot wire protocol. Server
// and client must encode through the same handle to stay symmetric.
var msgpackHandle = &codec.MsgpackHandle{}

// NewServerCodec wraps one robot connection for the RPC server
func NewServerCodec(conn io.ReadWriteCloser) rpc.ServerCodec {
	return msgpackrpc.NewCodecFromHandle(true, true, conn, msgpackHandle)
}

// NewClientCodec wraps one controller connection for the robot-side client
func NewClientCodec(conn io.ReadWriteCloser) rpc.ClientCodec {
	return msgpackrpc.NewCodecFromHandle(true, true, conn, msgpackHandle)
}
