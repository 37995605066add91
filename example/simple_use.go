package main

import (
	"fmt"
	"time"

	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/sdk/bridge"
	"github.com/leandrodaf/midibridge/sdk/contracts"
)

func main() {
	log := logger.NewZapLogger()

	b := bridge.New(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithClientName("simple-use"),
	)
	defer b.Close()

	fmt.Println("Compiled MIDI APIs:")
	for _, api := range bridge.CompiledAPIs() {
		fmt.Printf("  %d %s\n", api, bridge.APIDisplayName(api))
	}

	in := b.InNew(contracts.APILoopback, "", 100)
	if !in.OK {
		log.Error("Failed to create MIDI input", log.Field().String("error", in.Message))
		return
	}
	if res := b.InOpenVirtualPort(in.Value, "simple-in"); !res.OK {
		log.Error("Failed to open virtual input", log.Field().String("error", res.Message))
		return
	}

	out := b.OutNew(contracts.APILoopback, "")
	if !out.OK {
		log.Error("Failed to create MIDI output", log.Field().String("error", out.Message))
		return
	}
	if res := b.OutOpenVirtualPort(out.Value, "simple-out"); !res.OK {
		log.Error("Failed to open virtual output", log.Field().String("error", res.Message))
		return
	}

	events := make(chan []byte, 16)
	b.InSetCallback(in.Value, func(deltaTime float64, message []byte, userData any) {
		log.Info("MIDI Event",
			log.Field().String("Port", userData.(string)),
			log.Field().Float64("Delta", deltaTime),
			log.Field().Int("Status", int(message[0])),
		)
		events <- message
	}, "simple-in")
	defer b.InCancelCallback(in.Value)

	buf := b.BufferNew()
	defer b.BufferDelete(buf)

	for _, note := range []byte{0x3C, 0x40, 0x43} {
		b.BufferSetBytes(buf, []byte{0x90, note, 0x64})
		if res := b.OutSendMessage(out.Value, buf); !res.OK {
			log.Error("Failed to send note", log.Field().String("error", res.Message))
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	for i := 0; i < 3; i++ {
		select {
		case msg := <-events:
			fmt.Printf("received % X\n", msg)
		case <-time.After(time.Second):
			fmt.Println("timed out waiting for MIDI events")
			return
		}
	}
}
