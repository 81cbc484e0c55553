// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command sessiond demuxes DNS/LLMNR/mDNS traffic from a packet
// capture, runs it through the wire parser and rule engine, and emits
// JSON transaction records.
package main

import (
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arkime/sessiond/internal/config"
	"github.com/arkime/sessiond/internal/dnsproto"
	"github.com/arkime/sessiond/internal/logging"
	"github.com/arkime/sessiond/internal/metrics"
	"github.com/arkime/sessiond/internal/rules"
	"github.com/arkime/sessiond/internal/session"
)

func main() {
	offline := flag.String("r", "", "read from a pcap file instead of a live interface")
	iface := flag.String("i", "", "capture interface")
	configPath := flag.String("config", "", "HCL configuration file")
	metricsAddr := flag.String("metrics-addr", ":9256", "Prometheus /metrics listen address")
	geoDBPath := flag.String("geo-db", "", "MaxMind country database for answer-IP enrichment (optional)")
	flag.Parse()

	var geo *dnsproto.GeoEnricher
	if *geoDBPath != "" {
		g, err := dnsproto.OpenGeoEnricher(*geoDBPath)
		if err != nil {
			logging.Warn("geo enrichment disabled: %v", err)
		} else {
			geo = g
			defer geo.Close()
		}
	}

	registry := session.NewFieldObjectRegistry()
	txnPos := dnsproto.RegisterFields(registry)
	registry.DefineScalar("dns.host", session.KindString, "query hostname of the most recent DNS transaction")

	var strictMode bool

	idx := rules.NewRuleIndex()
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			logging.Error("config load failed: %v", err)
			return
		}
		strictMode = cfg.DNSRules.OCSFStrictMode
		loaded, err := config.LoadAllRuleFiles(cfg.DNSRules.RulesFiles, registry)
		if err != nil {
			logging.Error("rule load failed: %v", err)
			return
		}
		// No BPF compiler is wired into this process, so dontSaveBPFs and
		// minPacketsSaveBPFs entries never resolve against a named program
		// here and BuildSynthBPFRules returns nothing; a deployment with a
		// real compiler would supply namedPrograms from it.
		namedPrograms := map[string]*rules.BPFProgram{}
		loaded = append(loaded, config.BuildSynthBPFRules(cfg.DNSRules.DontSaveBPFs, cfg.DNSRules.MinPacketsSaveBPFs, namedPrograms, registry)...)
		idx.Reload(loaded, registry)
		if watcher, err := config.NewRuleFileWatcher(cfg.DNSRules.RulesFiles, registry, idx); err != nil {
			logging.Warn("rule file watch disabled: %v", err)
		} else {
			defer watcher.Close()
		}
	}
	eval := rules.NewEvaluator(idx, registry)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		logging.Info("metrics listening on %s", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			logging.Warn("metrics server stopped: %v", err)
		}
	}()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			collector.SyncRuleMatches(idx.Rules())
		}
	}()

	var handle *pcap.Handle
	var err error
	if *offline != "" {
		handle, err = pcap.OpenOffline(*offline)
	} else {
		handle, err = pcap.OpenLive(*iface, 65535, true, pcap.BlockForever)
	}
	if err != nil {
		logging.Error("opening capture: %v", err)
		return
	}
	defer handle.Close()

	sessions := make(map[string]*session.BasicSession)
	reassemblers := make(map[string]*dnsproto.TCPReassembler)

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	for packet := range source.Packets() {
		now := time.Now()
		if packet.Metadata() != nil {
			now = packet.Metadata().Timestamp
		}
		processPacket(packet, now, registry, txnPos, eval, collector, geo, sessions, reassemblers, os.Stdout, strictMode)
	}
}

func processPacket(
	packet gopacket.Packet,
	now time.Time,
	registry session.FieldsRegistry,
	txnPos session.FieldPos,
	eval *rules.Evaluator,
	collector *metrics.Collector,
	geo *dnsproto.GeoEnricher,
	sessions map[string]*session.BasicSession,
	reassemblers map[string]*dnsproto.TCPReassembler,
	out io.Writer,
	strictMode bool,
) {
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	tcpLayer := packet.Layer(layers.LayerTypeTCP)
	if udpLayer == nil && tcpLayer == nil {
		return
	}

	srcIP, dstIP := endpointIPs(packet)
	if srcIP == nil {
		return
	}

	appLayer := packet.ApplicationLayer()
	if appLayer == nil {
		return
	}
	payload := appLayer.Payload()

	if udp, ok := udpLayer.(*layers.UDP); ok {
		port := int(udp.DstPort)
		label, ok := dnsproto.DialectLabel(port)
		if !ok {
			port = int(udp.SrcPort)
			label, ok = dnsproto.DialectLabel(port)
			if !ok {
				return
			}
		}
		key := sessionKey(srcIP, dstIP, int(udp.SrcPort), int(udp.DstPort), "udp")
		sess := sessionFor(sessions, key, srcIP, dstIP, int(udp.SrcPort), int(udp.DstPort), "udp", txnPos)
		result := dnsproto.HandleUDP(payload, port, sess, txnPos, now)
		collector.ObserveDialect(label)
		afterParse(result, sess, registry, txnPos, eval, collector, geo, out, strictMode)
		return
	}

	if tcp, ok := tcpLayer.(*layers.TCP); ok {
		port := int(tcp.DstPort)
		if port != dnsproto.PortDNS {
			port = int(tcp.SrcPort)
		}
		label, ok := dnsproto.DialectLabel(port)
		if !ok {
			return
		}
		key := sessionKey(srcIP, dstIP, int(tcp.SrcPort), int(tcp.DstPort), "tcp")
		sess := sessionFor(sessions, key, srcIP, dstIP, int(tcp.SrcPort), int(tcp.DstPort), "tcp", txnPos)
		reassembler, ok := reassemblers[key]
		if !ok {
			reassembler = dnsproto.NewTCPReassembler(port)
			reassemblers[key] = reassembler
		}
		dir := session.DirClientToServer
		if int(tcp.DstPort) != port {
			dir = session.DirServerToClient
		}
		for _, result := range reassembler.Feed(dir, payload, sess, txnPos, now) {
			collector.ObserveDialect(label)
			afterParse(result, sess, registry, txnPos, eval, collector, geo, out, strictMode)
		}
	}
}

func afterParse(
	result dnsproto.ParseResult,
	sess session.Session,
	registry session.FieldsRegistry,
	txnPos session.FieldPos,
	eval *rules.Evaluator,
	collector *metrics.Collector,
	geo *dnsproto.GeoEnricher,
	out io.Writer,
	strictMode bool,
) {
	if result.Dropped {
		collector.ObserveDiscard(result.DropReason)
		return
	}
	if result.Txn == nil {
		return
	}
	geo.EnrichAnswers(result.Txn)
	hostPos, ok := registry.Resolve("dns.host")
	if ok {
		sess.SetField(hostPos.Pos, result.Txn.Query.Hostname)
		eval.OnFieldSet(sess, hostPos.Pos, result.Txn.Query.Hostname)
	}
	eval.OnAfterClassify(sess)

	record, err := dnsproto.EmitRecord(result.Txn, sess, strictMode, geo != nil)
	if err != nil {
		logging.Warn("emitting DNS record: %v", err)
		return
	}
	out.Write(append(record, '\n'))
}

func endpointIPs(packet gopacket.Packet) (net.IP, net.IP) {
	if ipv4 := packet.Layer(layers.LayerTypeIPv4); ipv4 != nil {
		ip := ipv4.(*layers.IPv4)
		return ip.SrcIP, ip.DstIP
	}
	if ipv6 := packet.Layer(layers.LayerTypeIPv6); ipv6 != nil {
		ip := ipv6.(*layers.IPv6)
		return ip.SrcIP, ip.DstIP
	}
	return nil, nil
}

func sessionKey(srcIP, dstIP net.IP, srcPort, dstPort int, proto string) string {
	return proto + "|" + srcIP.String() + "|" + dstIP.String() + "|" + strconv.Itoa(srcPort) + "|" + strconv.Itoa(dstPort)
}

func sessionFor(sessions map[string]*session.BasicSession, key string, srcIP, dstIP net.IP, srcPort, dstPort int, proto string, txnPos session.FieldPos) *session.BasicSession {
	sess, ok := sessions[key]
	if ok {
		return sess
	}
	sess = session.NewBasicSession(srcIP, dstIP, srcPort, dstPort, proto)
	dnsproto.WireSession(sess, txnPos)
	sessions[key] = sess
	return sess
}
