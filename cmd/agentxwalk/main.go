// agentxwalk walks a subtree through the master SNMP agent, verifying
// end to end that a registered region is being served. Point it at the
// master's SNMP port, not the AgentX port.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/gosnmp/gosnmp"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	agent := flag.String("agent", "127.0.0.1", "Master agent host")
	port := flag.Uint("port", 161, "Master agent SNMP port")
	community := flag.String("community", "public", "SNMPv2c community")
	rootOID := flag.String("oid", ".1.3.6.1.4.1.8072.2.255", "Subtree to walk")
	timeout := flag.Duration("timeout", 5*time.Second, "Request timeout")
	flag.Parse()

	client := &gosnmp.GoSNMP{
		Target:             *agent,
		Port:               uint16(*port),
		Community:          *community,
		Version:            gosnmp.Version2c,
		Timeout:            *timeout,
		Retries:            3,
		ExponentialTimeout: true,
		MaxOids:            gosnmp.MaxOids,
	}

	if err := client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s:%d: %w", *agent, *port, err)
	}
	defer client.Conn.Close()

	count := 0

	err := client.BulkWalk(*rootOID, func(pdu gosnmp.SnmpPDU) error {
		count++
		fmt.Printf("%s = %s\n", pdu.Name, renderValue(pdu))

		return nil
	})
	if err != nil {
		return fmt.Errorf("walk of %s failed: %w", *rootOID, err)
	}

	if count == 0 {
		return fmt.Errorf("no objects under %s; is the subagent registered?", *rootOID)
	}

	fmt.Printf("%d object(s)\n", count)

	return nil
}

func renderValue(pdu gosnmp.SnmpPDU) string {
	switch pdu.Type {
	case gosnmp.OctetString:
		return fmt.Sprintf("%q", pdu.Value.([]byte))
	case gosnmp.ObjectIdentifier, gosnmp.IPAddress:
		return fmt.Sprintf("%v", pdu.Value)
	case gosnmp.TimeTicks:
		return fmt.Sprintf("%v ticks", pdu.Value)
	default:
		return fmt.Sprintf("%v (%v)", pdu.Value, pdu.Type)
	}
}
