package mempool

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uhyunpark/mirrorperp/pkg/crypto"
)

type fakeBackend struct {
	mu           sync.Mutex
	pendingNonce uint64
	nonceCalls   int
	failNext     bool
	sent         []*types.Transaction
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, _ common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonceCalls++
	return f.pendingNonce, nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(5_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("nonce too low")
	}
	f.sent = append(f.sent, tx)
	f.pendingNonce = tx.Nonce() + 1
	return nil
}

func newQueue(t *testing.T, backend *fakeBackend) (*Queue, context.CancelFunc) {
	t.Helper()
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	q := NewQueue(backend, signer, big.NewInt(25), zap.NewNop().Sugar(), 8)
	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)
	return q, cancel
}

func req(label string) Request {
	return Request{To: common.HexToAddress("0x01"), Data: []byte{0xde, 0xad}, Value: big.NewInt(4), Label: label}
}

func TestQueue_SequentialNonces(t *testing.T) {
	backend := &fakeBackend{pendingNonce: 41}
	q, cancel := newQueue(t, backend)
	defer cancel()

	for i := 0; i < 3; i++ {
		tx, err := q.Submit(context.Background(), req("increase"))
		require.NoError(t, err)
		assert.Equal(t, uint64(41+i), tx.Nonce())
		assert.Equal(t, uint64(120_000), tx.Gas())
		assert.Equal(t, "4", tx.Value().String())
	}
	assert.Equal(t, 1, backend.nonceCalls)
	assert.Equal(t, uint64(3), q.Stats().Sent)
}

func TestQueue_ResyncAfterFailedSend(t *testing.T) {
	backend := &fakeBackend{pendingNonce: 5, failNext: true}
	q, cancel := newQueue(t, backend)
	defer cancel()

	_, err := q.Submit(context.Background(), req("first"))
	require.Error(t, err)

	tx, err := q.Submit(context.Background(), req("second"))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), tx.Nonce())
	assert.Equal(t, 2, backend.nonceCalls)

	stats := q.Stats()
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(1), stats.Sent)
}

func TestQueue_ConcurrentSubmitsGetDistinctNonces(t *testing.T) {
	backend := &fakeBackend{pendingNonce: 0}
	q, cancel := newQueue(t, backend)
	defer cancel()

	const n = 20
	var wg sync.WaitGroup
	nonces := make([]uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx, err := q.Submit(context.Background(), req("concurrent"))
			if assert.NoError(t, err) {
				nonces[i] = tx.Nonce()
			}
		}(i)
	}
	wg.Wait()

	sort.Slice(nonces, func(a, b int) bool { return nonces[a] < nonces[b] })
	for i, nonce := range nonces {
		assert.Equal(t, uint64(i), nonce)
	}
}

// otherAccountSigner signs with its key but reports a different address.
type otherAccountSigner struct {
	*crypto.Signer
	claimed common.Address
}

func (s otherAccountSigner) Address() common.Address { return s.claimed }

func TestQueue_RefusesForeignSender(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	backend := &fakeBackend{pendingNonce: 9}
	signer := otherAccountSigner{Signer: key, claimed: common.HexToAddress("0x00000000000000000000000000000000000000aa")}
	q := NewQueue(backend, signer, big.NewInt(25), zap.NewNop().Sugar(), 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	_, err = q.Submit(context.Background(), req("increase"))
	require.ErrorIs(t, err, ErrSenderMismatch)
	assert.Contains(t, err.Error(), key.Address().Hex())
	assert.Empty(t, backend.sent)
	assert.Equal(t, uint64(1), q.Stats().Failed)
}

func TestQueue_SentTxRecoversToQueueAddress(t *testing.T) {
	backend := &fakeBackend{}
	q, cancel := newQueue(t, backend)
	defer cancel()

	tx, err := q.Submit(context.Background(), req("increase"))
	require.NoError(t, err)
	from, err := crypto.TxSender(tx)
	require.NoError(t, err)
	assert.Equal(t, q.Address(), from)
}

func TestQueue_CancelledBeforeDequeue(t *testing.T) {
	backend := &fakeBackend{}
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	q := NewQueue(backend, signer, big.NewInt(25), zap.NewNop().Sugar(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Submit(ctx, req("late"))
		errCh <- err
	}()
	require.Eventually(t, func() bool { return q.Len() == 1 }, time.Second, time.Millisecond)
	cancel()

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go q.Run(runCtx)

	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Empty(t, backend.sent)
}

func TestQueue_ClosedQueueRejects(t *testing.T) {
	backend := &fakeBackend{}
	q, cancel := newQueue(t, backend)
	cancel()
	require.Eventually(t, func() bool {
		_, err := q.Submit(context.Background(), req("after close"))
		return errors.Is(err, ErrQueueClosed)
	}, time.Second, time.Millisecond)
}
