package main

import (
	"fmt"

	"github.com/edgeterm/mqttlink"
	"github.com/edgeterm/mqttlink/engine"
	"github.com/fatih/color"
)

// printNotification renders one protocol event to stdout. Received
// messages print a topic/payload length header followed by the raw bytes;
// every other event prints as its type and result code.
func printNotification(n *mqttlink.Notification) {
	if n.Type == mqttlink.EvtPublish && n.Message != nil {
		printMessage(n.Message)
		return
	}

	result := color.GreenString("%d", n.Result)
	if n.Result != 0 {
		result = color.RedString("%d", n.Result)
	}

	fmt.Printf("%s %s: %s", color.HiBlackString("<<"), eventText(n.Type), result)
	if n.Type == mqttlink.EvtConnAck && n.Result > 0 {
		fmt.Printf(" (%s)", connackText(n.Result))
	}
	if n.Err != nil {
		fmt.Printf(" %s", color.RedString(n.Err.Error()))
	}
	fmt.Println()
}

func printMessage(msg *mqttlink.InboundMessage) {
	header := fmt.Sprintf("%d,%d", len(msg.Topic), len(msg.Payload))
	fmt.Printf("%s %s %s\n%s\n%s\n",
		color.HiBlackString("<<"),
		color.CyanString("message"),
		color.YellowString(header),
		color.CyanString(msg.Topic),
		msg.Payload)
}

func eventText(t engine.EventType) string {
	switch t {
	case mqttlink.EvtConnAck:
		return "connack"
	case mqttlink.EvtDisconnect:
		return "disconnect"
	case mqttlink.EvtPublish:
		return "message"
	case mqttlink.EvtPubAck:
		return "puback"
	case mqttlink.EvtPubRec:
		return "pubrec"
	case mqttlink.EvtPubRel:
		return "pubrel"
	case mqttlink.EvtPubComp:
		return "pubcomp"
	case mqttlink.EvtSubAck:
		return "suback"
	case mqttlink.EvtUnsubAck:
		return "unsuback"
	case mqttlink.EvtPingResp:
		return "pingresp"
	default:
		return t.String()
	}
}

func connackText(result int) string {
	return engine.ReturnCode(result).String()
}
