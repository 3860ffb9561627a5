// Package broadcast implements the Broadcast Worker: the single task with
// exclusive ownership of the signing account's sequence number, which
// drains an unbounded queue of transaction packages one at a time,
// simulates, signs, broadcasts, and (if the immediate response is
// ambiguous) polls for the delivered result, before reporting back on
// each package's own feedback channel.
//
// The worker's shape — a single select loop reading off one input channel
// until its context is cancelled — follows the
// teacher's htlcswitch.Switch.htlcForwarder; the unbounded inbound queue
// is the teacher's own lnd/queue.ConcurrentQueue, used here for its FIFO
// ordering rather than for any Bitcoin-specific purpose.
package broadcast

import (
	"context"
	"fmt"
	"time"

	sdktx "github.com/cosmos/cosmos-sdk/types/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	gogoproto "github.com/cosmos/gogoproto/proto"
	"github.com/lightningnetwork/lnd/queue"
	"golang.org/x/time/rate"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/chain"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/chainerr"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/logs"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/metrics"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/nodeclient"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/signer"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/task"
	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/txpkg"
)

// Config bundles the Worker's collaborators.
type Config struct {
	Node   *nodeclient.Client
	Signer *signer.State

	// BroadcastDelay paces successive broadcasts; RetryDelay paces the
	// delivered-tx poll loop after a broadcast whose immediate response
	// didn't settle the outcome.
	BroadcastDelay time.Duration
	RetryDelay     time.Duration

	// SequenceRefetchEvery is the consecutive-signature-verification-failure
	// streak length that triggers a sequence refetch from the chain
	// (spec.md §4.2/§9(b): 10, not 5). The worker keeps retrying
	// indefinitely on that error; there is no give-up threshold.
	SequenceRefetchEvery int
}

// Worker is the Broadcast Worker task.
type Worker struct {
	cfg   Config
	limit *rate.Limiter

	inbound *queue.ConcurrentQueue[txpkg.Package]
}

// New constructs a Worker and starts its inbound queue's pump goroutine.
// The queue itself outlives any one Run call, so restarts (task.Restart)
// reuse the same Worker and its already-queued backlog rather than losing
// packages submitted while the task was between runs.
func New(cfg Config) *Worker {
	w := &Worker{
		cfg:     cfg,
		limit:   rate.NewLimiter(rate.Every(cfg.BroadcastDelay), 1),
		inbound: queue.NewConcurrentQueue[txpkg.Package](64),
	}
	w.inbound.Start()
	return w
}

// Submit enqueues a package for broadcast. Safe to call from any
// goroutine, including before Run has been called for the first time.
func (w *Worker) Submit(pkg txpkg.Package) {
	w.inbound.ChanIn() <- pkg
}

// Run implements task.Runnable. It never returns nil except via ctx
// cancellation (a clean supervisor-driven shutdown); any other exit is an
// error the supervisor's restart policy acts on.
func (w *Worker) Run(ctx context.Context, mode task.RunMode) error {
	logs.Broadcast.Infof("broadcast worker starting (mode=%v)", mode)

	for {
		select {
		case pkg := <-w.inbound.ChanOut():
			if err := w.handle(ctx, pkg); err != nil {
				if chainerr.Is(err, chainerr.KindChannelClosed) {
					return err
				}
				logs.Broadcast.Errorf("package from %s failed: %v", pkg.Source, err)
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handle runs one package through simulate/sign/broadcast/deliver, honors
// its expiration at every blocking step, and sends exactly one Response once
// broadcastWithRetries returns one. An expired package is dropped without a
// Response per txpkg.Package's contract, and a package that fails with an
// error (rate-limit wait, sequence refetch, cancellation) gets none either.
func (w *Worker) handle(parent context.Context, pkg txpkg.Package) error {
	ctx, cancel := pkg.Expiration.Context(parent)
	defer cancel()

	if pkg.Expiration.Expired(time.Now()) {
		logs.Broadcast.Warnf("dropping expired package from %s", pkg.Source)
		return nil
	}

	if err := w.limit.Wait(ctx); err != nil {
		return fmt.Errorf("broadcast: rate limit wait: %w", err)
	}

	gasLimit, err := w.simulate(ctx, pkg)
	if err != nil {
		logs.Broadcast.Warnf("simulation failed for %s, using fallback gas %d: %v",
			pkg.Source, pkg.FallbackGas, err)
		gasLimit = pkg.FallbackGas
	}

	resp, err := w.broadcastWithRetries(ctx, pkg, gasLimit)
	if err != nil {
		if chainerr.Is(err, chainerr.KindExpiration) {
			logs.Broadcast.Warnf("dropping expired package from %s", pkg.Source)
			return nil
		}
		return err
	}
	if resp.Code == chain.CodeOK {
		metrics.IncBroadcastOK()
	}

	select {
	case pkg.FeedbackSender <- resp:
	default:
	}
	return nil
}

// simulate asks the node for a gas estimate and converts it through the
// signer's gas-adjustment ratio.
func (w *Worker) simulate(ctx context.Context, pkg txpkg.Package) (uint64, error) {
	txClient, err := w.cfg.Node.Tx()
	if err != nil {
		return 0, chainerr.Wrap(chainerr.KindConnectivity, err)
	}

	signedForSimulation, err := chain.SignTx(w.cfg.Signer, pkg.TxBody, pkg.HardGasLimit)
	if err != nil {
		return 0, chainerr.Wrap(chainerr.KindSimulation, err)
	}

	resp, err := txClient.Simulate(ctx, &sdktx.SimulateRequest{TxBytes: signedForSimulation})
	if err != nil {
		return 0, chainerr.Wrap(chainerr.KindSimulation, err)
	}

	return w.cfg.Signer.AdjustGas(resp.GasInfo.GasUsed, pkg.HardGasLimit), nil
}

// broadcastWithRetries implements spec.md §4.2's per-package state machine:
// a transport error retries the same signed package unconditionally; a
// SIGNATURE_VERIFICATION(32) response increments the sequence locally,
// counts toward a consecutive streak, refetches the sequence from the chain
// every SequenceRefetchEvery-th such response, and loops back through a
// fresh sign (gasLimit is already fixed by the one simulation upstream); any
// other code is terminal — OK increments the sequence, anything else does
// not, but either way the response goes back to the caller.
func (w *Worker) broadcastWithRetries(ctx context.Context, pkg txpkg.Package, gasLimit uint64) (txpkg.Response, error) {
	consecutiveSigVerify := 0

	for {
		if pkg.Expiration.Expired(time.Now()) {
			return txpkg.Response{}, chainerr.Wrap(chainerr.KindExpiration, fmt.Errorf("package from %s expired", pkg.Source))
		}

		resp, err := w.broadcastOnce(ctx, pkg, gasLimit)
		if err != nil && chainerr.Is(err, chainerr.KindConnectivity) {
			logs.Broadcast.Warnf("transport error broadcasting %s, retrying: %v", pkg.Source, err)
			metrics.IncBroadcastRetry()
			if waitErr := w.sleepRetryDelay(ctx); waitErr != nil {
				return txpkg.Response{}, waitErr
			}
			continue
		}

		if resp.Code == chain.CodeSignatureVerification {
			w.cfg.Signer.IncrementSequence()
			consecutiveSigVerify++
			logs.Broadcast.Errorf("signature verification failure broadcasting %s (streak %d): %v",
				pkg.Source, consecutiveSigVerify, err)

			if consecutiveSigVerify%w.cfg.SequenceRefetchEvery == 0 {
				if refetchErr := w.refetchSequence(ctx); refetchErr != nil {
					return txpkg.Response{}, refetchErr
				}
				metrics.IncSequenceRefetch()
			}

			if waitErr := w.sleepRetryDelay(ctx); waitErr != nil {
				return txpkg.Response{}, waitErr
			}
			continue
		}

		if resp.Code == chain.CodeOK {
			w.cfg.Signer.IncrementSequence()
		}
		return resp, nil
	}
}

func (w *Worker) sleepRetryDelay(ctx context.Context) error {
	select {
	case <-time.After(w.cfg.RetryDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) broadcastOnce(ctx context.Context, pkg txpkg.Package, gasLimit uint64) (txpkg.Response, error) {
	metrics.IncBroadcastAttempt()
	txClient, err := w.cfg.Node.Tx()
	if err != nil {
		return txpkg.Response{}, chainerr.Wrap(chainerr.KindConnectivity, err)
	}

	// Signed fresh every attempt: a sequence refetch between attempts
	// changes AuthInfo, so a stale signature would never verify.
	signedTx, err := chain.SignTx(w.cfg.Signer, pkg.TxBody, gasLimit)
	if err != nil {
		return txpkg.Response{}, chainerr.Wrap(chainerr.KindExecution, err)
	}

	resp, err := txClient.BroadcastTx(ctx, &sdktx.BroadcastTxRequest{
		TxBytes: signedTx,
		Mode:    sdktx.BroadcastMode_BROADCAST_MODE_SYNC,
	})
	if err != nil {
		return txpkg.Response{}, chainerr.Wrap(chainerr.KindConnectivity, err)
	}

	txResp := resp.TxResponse
	out := txpkg.Response{TxHash: txResp.Txhash, Code: txResp.Code, Log: txResp.RawLog}

	if txResp.Code != chain.CodeOK {
		return out, chainerr.Wrap(chainerr.KindExecution, fmt.Errorf("tx rejected: code=%d log=%s", txResp.Code, txResp.RawLog))
	}

	delivered, err := w.pollDelivered(ctx, txResp.Txhash)
	if err != nil {
		return out, err
	}
	return delivered, nil
}

// pollDelivered waits for the broadcast tx to actually land in a block,
// since a sync-mode broadcast only guarantees CheckTx acceptance.
func (w *Worker) pollDelivered(ctx context.Context, txHash string) (txpkg.Response, error) {
	for {
		txClient, err := w.cfg.Node.Tx()
		if err != nil {
			return txpkg.Response{}, chainerr.Wrap(chainerr.KindConnectivity, err)
		}

		resp, err := txClient.GetTx(ctx, &sdktx.GetTxRequest{Hash: txHash})
		if err == nil {
			tr := resp.TxResponse
			return txpkg.Response{
				TxHash:  tr.Txhash,
				Code:    tr.Code,
				Log:     tr.RawLog,
				Data:    tr.Data,
				GasUsed: uint64(tr.GasUsed),
			}, nil
		}

		select {
		case <-time.After(w.cfg.RetryDelay):
		case <-ctx.Done():
			return txpkg.Response{}, fmt.Errorf("broadcast: delivered-tx poll: %w", ctx.Err())
		}
	}
}

// refetchSequence reloads the account's current sequence number from the
// node and overwrites the signer's copy outright.
func (w *Worker) refetchSequence(ctx context.Context) error {
	authClient, err := w.cfg.Node.Auth()
	if err != nil {
		return chainerr.Wrap(chainerr.KindConnectivity, err)
	}

	resp, err := authClient.Account(ctx, &authtypes.QueryAccountRequest{Address: w.cfg.Signer.Address().String()})
	if err != nil {
		return chainerr.Wrap(chainerr.KindContractQuery, err)
	}

	var account authtypes.BaseAccount
	if err := gogoproto.Unmarshal(resp.Account.Value, &account); err != nil {
		return chainerr.Wrap(chainerr.KindContractQuery, fmt.Errorf("unmarshal BaseAccount: %w", err))
	}

	w.cfg.Signer.SetSequence(account.Sequence)
	return nil
}
