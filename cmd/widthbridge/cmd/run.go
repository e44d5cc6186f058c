package cmd

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"

	"github.com/sarchlab/widthbridge/acceptance"
	"github.com/sarchlab/widthbridge/bridge"
	"github.com/sarchlab/widthbridge/sim/directconnection"
	"github.com/sarchlab/widthbridge/simulation"
	"github.com/sarchlab/widthbridge/store"
	"github.com/sarchlab/widthbridge/store/backend"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a randomized bridge simulation.",
	Long: `run drives a configurable number of randomized write and read ` +
		`transactions through a bridge connected to a wide store backend, ` +
		`verifies the data byte by byte, and records every completed ` +
		`transaction into an SQLite database.`,
	Run: func(cmd *cobra.Command, _ []string) {
		runSimulation(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("narrow-bytes", 8, "source word width, in bytes")
	runCmd.Flags().Int("wide-bytes", 64, "store word width, in bytes")
	runCmd.Flags().Int("num-transactions", 200,
		"number of transactions to drive through the bridge")
	runCmd.Flags().Int("max-word-count", 1023,
		"largest admissible per-transaction word count")
	runCmd.Flags().Int("seed", 1, "random seed")
	runCmd.Flags().Int("write-stall", 0,
		"number of cycles the backend stalls after each write strobe")
	runCmd.Flags().Int("read-interval", 0,
		"number of idle cycles between two read data beats")
	runCmd.Flags().Int("latency", 0,
		"number of cycles the backend takes to start serving a command")
	runCmd.Flags().Bool("no-monitor", false,
		"disable the monitoring server")
	runCmd.Flags().Int("monitor-port", 0,
		"port number for the monitoring server, 0 picks a free port")
	runCmd.Flags().String("output", "",
		"name of the output database file, without the extension")
}

// transactionRecord is one row in the transactions table of the output
// database.
type transactionRecord struct {
	ID        int
	IsWrite   bool
	Address   uint64
	WordCount int
	Strobes   int
	Cycle     uint64
}

type bridgeSystem struct {
	simulation *simulation.Simulation
	test       *acceptance.Test
	agent      *acceptance.SourceAgent
	bridge     *bridge.Comp
	backend    *backend.Comp
	storage    *store.Storage
}

func runSimulation(cmd *cobra.Command) {
	narrowBytes := intFlag(cmd, "narrow-bytes", "WIDTHBRIDGE_NARROW_BYTES")
	wideBytes := intFlag(cmd, "wide-bytes", "WIDTHBRIDGE_WIDE_BYTES")
	numTransactions := intFlag(
		cmd, "num-transactions", "WIDTHBRIDGE_NUM_TRANSACTIONS")
	maxWordCount := intFlag(cmd, "max-word-count", "WIDTHBRIDGE_MAX_WORD_COUNT")
	seed := intFlag(cmd, "seed", "WIDTHBRIDGE_SEED")
	writeStall := intFlag(cmd, "write-stall", "WIDTHBRIDGE_WRITE_STALL")
	readInterval := intFlag(cmd, "read-interval", "WIDTHBRIDGE_READ_INTERVAL")
	latency := intFlag(cmd, "latency", "WIDTHBRIDGE_LATENCY")
	noMonitor, _ := cmd.Flags().GetBool("no-monitor")
	monitorPort := intFlag(cmd, "monitor-port", "WIDTHBRIDGE_MONITOR_PORT")
	output, _ := cmd.Flags().GetString("output")

	rand.Seed(int64(seed))

	s := buildBridgeSystem(buildParams{
		narrowWordBytes: narrowBytes,
		wideWordBytes:   wideBytes,
		maxWordCount:    maxWordCount,
		writeStall:      writeStall,
		readInterval:    readInterval,
		latency:         latency,
		noMonitor:       noMonitor,
		monitorPort:     monitorPort,
		outputFileName:  output,
	})

	recordTransactions(s)
	trackProgress(s, numTransactions)

	s.test.GenerateTransactions(numTransactions)
	s.agent.TickLater()

	err := s.simulation.GetEngine().Run()
	if err != nil {
		log.Panic(err)
	}

	s.test.MustHaveCompletedAllTransactions()
	s.test.MustMatchStoreContents(s.storage)
	reportResults(s, numTransactions)

	s.simulation.Terminate()
	atexit.Exit(0)
}

// intFlag reads an integer flag, falling back to an environment variable
// when the flag is not set on the command line.
func intFlag(cmd *cobra.Command, flag, envName string) int {
	if !cmd.Flags().Changed(flag) {
		if v, ok := os.LookupEnv(envName); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				log.Panicf("%s must be an integer, got %q", envName, v)
			}

			return n
		}
	}

	n, err := cmd.Flags().GetInt(flag)
	if err != nil {
		log.Panic(err)
	}

	return n
}

type buildParams struct {
	narrowWordBytes int
	wideWordBytes   int
	maxWordCount    int
	writeStall      int
	readInterval    int
	latency         int
	noMonitor       bool
	monitorPort     int
	outputFileName  string
}

func buildBridgeSystem(p buildParams) *bridgeSystem {
	s := &bridgeSystem{}

	simBuilder := simulation.MakeBuilder()
	if p.noMonitor {
		simBuilder = simBuilder.WithoutMonitoring()
	}

	if p.monitorPort > 0 {
		simBuilder = simBuilder.WithMonitorPort(p.monitorPort)
	}

	if p.outputFileName != "" {
		simBuilder = simBuilder.WithOutputFileName(p.outputFileName)
	}

	s.simulation = simBuilder.Build()
	engine := s.simulation.GetEngine()

	s.storage = store.NewStorage(1 * store.MB)
	s.test = acceptance.NewTest(
		p.narrowWordBytes, p.wideWordBytes, s.storage.Capacity())

	s.backend = backend.MakeBuilder().
		WithEngine(engine).
		WithWideWordBytes(p.wideWordBytes).
		WithStorage(s.storage).
		WithCalibrationLatency(5).
		WithCalibrationTarget("Bridge.StoreCmd").
		WithReadDataTarget("Bridge.StoreRead").
		WithWriteStall(p.writeStall).
		WithReadInterval(p.readInterval).
		WithLatency(p.latency).
		Build("Backend")

	s.bridge = bridge.MakeBuilder().
		WithEngine(engine).
		WithNarrowWordBytes(p.narrowWordBytes).
		WithWideWordBytes(p.wideWordBytes).
		WithMaxWordCount(p.maxWordCount).
		WithStoreCmdDst(s.backend.CmdPort.AsRemote()).
		WithStoreWriteDst(s.backend.WritePort.AsRemote()).
		Build("Bridge")

	s.agent = acceptance.NewSourceAgent(engine, "Agent", s.test)
	s.agent.ConnectBridge(s.bridge)
	s.test.RegisterAgent(s.agent)

	conn := directconnection.MakeBuilder().
		WithEngine(engine).
		Build("Conn")

	for _, name := range []string{
		"WriteCtrl", "WriteData", "ReadCtrl", "ReadData",
	} {
		conn.PlugIn(s.agent.GetPortByName(name))
		conn.PlugIn(s.bridge.GetPortByName(name))
	}

	conn.PlugIn(s.bridge.GetPortByName("StoreCmd"))
	conn.PlugIn(s.bridge.GetPortByName("StoreWrite"))
	conn.PlugIn(s.bridge.GetPortByName("StoreRead"))
	conn.PlugIn(s.backend.CmdPort)
	conn.PlugIn(s.backend.WritePort)
	conn.PlugIn(s.backend.ReadPort)

	s.simulation.RegisterComponent(s.agent)
	s.simulation.RegisterComponent(s.bridge)
	s.simulation.RegisterComponent(s.backend)

	return s
}

// recordTransactions writes one row into the output database for every
// transaction that completes.
func recordTransactions(s *bridgeSystem) {
	recorder := s.simulation.GetDataRecorder()
	recorder.CreateTable("transactions", transactionRecord{})

	numRecorded := 0
	prevOnComplete := s.test.OnComplete
	s.test.OnComplete = func(trans *acceptance.Transaction) {
		if prevOnComplete != nil {
			prevOnComplete(trans)
		}

		numRecorded++

		strobes := 0
		if trans.IsWrite {
			wordCount := len(trans.Words)
			ratio := s.bridge.Ratio()
			strobes = (wordCount + ratio - 1) / ratio
		}

		recorder.InsertData("transactions", transactionRecord{
			ID:        numRecorded,
			IsWrite:   trans.IsWrite,
			Address:   trans.Address,
			WordCount: len(trans.Words),
			Strobes:   strobes,
			Cycle:     uint64(s.simulation.GetEngine().CurrentCycle()),
		})
	}
}

func trackProgress(s *bridgeSystem, numTransactions int) {
	monitor := s.simulation.GetMonitor()
	if monitor == nil {
		return
	}

	bar := monitor.CreateProgressBar("Transactions", uint64(numTransactions))

	prevOnComplete := s.test.OnComplete
	s.test.OnComplete = func(trans *acceptance.Transaction) {
		if prevOnComplete != nil {
			prevOnComplete(trans)
		}

		bar.IncrementFinished(1)
	}

	atexit.Register(func() { monitor.CompleteProgressBar(bar) })
}

func reportResults(s *bridgeSystem, numTransactions int) {
	fmt.Printf("Completed %d transactions in %d cycles\n",
		numTransactions, s.simulation.GetEngine().CurrentCycle())

	got := s.backend.NumWriteStrobe()
	want := s.test.ExpectedWriteStrobes()
	if got != want {
		log.Panicf("write strobe count: got %d, want %d", got, want)
	}

	fmt.Printf("Backend received %d write strobes\n", got)
}
