// Command coodcli is a thin, one-shot command-line client over a
// locally loaded object dictionary: it loads an EDS file, runs a
// single enum/info/read/write/caread/cawrite operation against it, and
// prints the result.
//
// Flag-parsing and one-shot-command shape are grounded on
// cmd/sdo_client/main.go.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/coodcore/pkg/can"
	_ "github.com/samsamfire/coodcore/pkg/can/socketcan"
	"github.com/samsamfire/coodcore/pkg/cood"
	"github.com/samsamfire/coodcore/pkg/cood/abortcode"
	"github.com/samsamfire/coodcore/pkg/cood/edsbridge"
	"github.com/samsamfire/coodcore/pkg/cood/object"
	"github.com/samsamfire/coodcore/pkg/cood/remote"
	"github.com/samsamfire/coodcore/pkg/cood/remote/transport/candgram"
	"github.com/samsamfire/coodcore/pkg/cood/server"
)

// serveFunc dispatches one request to a response, whether served
// in-process against a local dictionary or round-tripped over a real
// transport.
type serveFunc func(remote.AnyRequest) remote.AnyResponse

func main() {
	log.SetLevel(log.InfoLevel)

	edsPath := flag.String("eds", "", "path to the EDS file describing the dictionary")
	index := flag.Uint("index", 0, "object index")
	subindex := flag.Uint("subindex", 0, "subindex")
	data := flag.String("data", "", "hex-encoded bytes for write/cawrite")
	canInterface := flag.String("can-interface", "", "CAN backend to dial instead of serving locally (e.g. socketcan)")
	canChannel := flag.String("can-channel", "can0", "CAN channel/interface name for -can-interface")
	canNodeID := flag.Uint("can-node-id", 0, "CANopen node ID to derive request/response COB-IDs from (1-127); overrides -can-request-cobid/-can-response-cobid")
	canRequestCOBID := flag.Uint("can-request-cobid", 0x600, "COB-ID this client sends requests on")
	canResponseCOBID := flag.Uint("can-response-cobid", 0x580, "COB-ID this client expects responses on")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: coodcli -eds <file> [-index N] [-subindex N] [-data HEX] <enum|info|read|write|caread|cawrite>")
		os.Exit(2)
	}
	command := flag.Arg(0)

	var serve serveFunc
	if *canInterface != "" {
		bus, err := can.NewBus(*canInterface, *canChannel, 0)
		if err != nil {
			log.WithError(err).Fatal("coodcli: opening CAN bus")
		}
		if err := bus.Connect(); err != nil {
			log.WithError(err).Fatal("coodcli: connecting CAN bus")
		}
		requestCOBID, responseCOBID := uint32(*canRequestCOBID), uint32(*canResponseCOBID)
		if *canNodeID != 0 {
			requestCOBID, responseCOBID, err = can.RemoteAccessCOBIDs(uint8(*canNodeID))
			if err != nil {
				log.WithError(err).Fatal("coodcli: deriving COB-IDs from -can-node-id")
			}
		}
		link := candgram.NewLink(bus, requestCOBID, responseCOBID)
		serve = remoteServe(link)
	} else {
		raw, err := os.ReadFile(*edsPath)
		if err != nil {
			log.WithError(err).Fatal("coodcli: reading EDS file")
		}
		dict := cood.New()
		if err := edsbridge.Load(dict, raw); err != nil {
			log.WithError(err).Fatal("coodcli: loading EDS file")
		}
		serve = server.New(dict).Serve
	}

	if err := run(serve, command, uint16(*index), uint8(*subindex), *data); err != nil {
		log.WithError(err).Fatal("coodcli: command failed")
	}
}

// roundTripNotifiable bridges candgram.Link's asynchronous
// OnRequestProcessed callback to a synchronous serveFunc: one pending
// response at a time, matching coodcli's one-shot command shape.
type roundTripNotifiable struct {
	responses chan remote.AnyResponse
}

func (n *roundTripNotifiable) OnReady(uint32, uint32)                        {}
func (n *roundTripNotifiable) OnDisconnected()                               {}
func (n *roundTripNotifiable) LoanExecutionContext()                         {}
func (n *roundTripNotifiable) OnRequestProcessed(resp remote.AnyResponse) {
	n.responses <- resp
}

// remoteServe dials link for every request, waiting for the matching
// response to arrive over the CAN bus.
func remoteServe(link *candgram.Link) serveFunc {
	n := &roundTripNotifiable{responses: make(chan remote.AnyResponse, 1)}
	link.RegisterNotifiable(n)
	return func(req remote.AnyRequest) remote.AnyResponse {
		if err := link.Send(req); err != nil {
			log.WithError(err).Fatal("coodcli: sending request over CAN")
		}
		return <-n.responses
	}
}

func run(serve serveFunc, command string, index uint16, subindex uint8, dataHex string) error {
	switch command {
	case "enum":
		return runEnum(serve)
	case "info":
		return runInfo(serve, index)
	case "read":
		return runRead(serve, index, subindex, remote.AccessSingleSubindex)
	case "caread":
		return runRead(serve, index, subindex, remote.AccessCompleteAccessSI0_8bit)
	case "write":
		return runWrite(serve, index, subindex, remote.AccessSingleSubindex, dataHex)
	case "cawrite":
		return runWrite(serve, index, subindex, remote.AccessCompleteAccessSI0_8bit, dataHex)
	default:
		return fmt.Errorf("coodcli: unknown command %q", command)
	}
}

func runEnum(serve serveFunc) error {
	req, err := remote.NewObjectEnumRequest(remote.MaxResponseSize, 0, 0xFFFF, uint16(object.AllPermissions))
	if err != nil {
		return err
	}
	resp := serve(req).(*remote.ObjectEnumResponse)
	if resp.Result != abortcode.OK {
		return resp.Result
	}
	for _, idx := range resp.Indices {
		fmt.Printf("0x%04X\n", idx)
	}
	return nil
}

func runInfo(serve serveFunc, index uint16) error {
	req, err := remote.NewObjectInfoRequest(remote.MaxResponseSize, index, 0, 255, true, false)
	if err != nil {
		return err
	}
	resp := serve(req).(*remote.ObjectInfoResponse)
	if resp.Result != abortcode.OK {
		return resp.Result
	}
	meta, err := resp.ObjectMeta()
	if err != nil {
		return err
	}
	subs, err := resp.Subindices()
	if err != nil {
		return err
	}
	fmt.Printf("%s (index 0x%04X, kind %d, %d subindices)\n", meta.Name, meta.Index, meta.Kind, meta.MaxNbSI)
	for _, s := range subs {
		fmt.Printf("  si=%d %-16s dataType=%d attrs=0x%04X\n", s.SI, s.Name, s.DataType, s.Attributes)
	}
	return nil
}

func runRead(serve serveFunc, index uint16, subindex uint8, accessType remote.AccessType) error {
	req, err := remote.NewReadRequest(remote.MaxResponseSize, accessType, index, subindex, uint16(object.AllPermissions))
	if err != nil {
		return err
	}
	resp := serve(req).(*remote.ReadResponse)
	if resp.Result != abortcode.OK {
		return resp.Result
	}
	fmt.Println(hex.EncodeToString(resp.Data))
	return nil
}

func runWrite(serve serveFunc, index uint16, subindex uint8, accessType remote.AccessType, dataHex string) error {
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return fmt.Errorf("coodcli: decoding -data: %w", err)
	}
	req, err := remote.NewWriteRequest(remote.MaxResponseSize, accessType, index, subindex, uint16(object.AllPermissions), data)
	if err != nil {
		return err
	}
	resp := serve(req).(*remote.WriteResponse)
	if resp.Result != abortcode.OK {
		return resp.Result
	}
	return nil
}
