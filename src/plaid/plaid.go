package plaid

import (
	"context"
	"fmt"

	"royal-server/src/models"

	"github.com/plaid/plaid-go/v41/plaid"
	"github.com/shopspring/decimal"
)

// syncPageSize is the largest page /transactions/sync will return.
const syncPageSize = 500

func NewPlaidClient(clientID, secret, env string) (*plaid.APIClient, error) {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)

	switch env {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	default:
		return nil, fmt.Errorf("invalid Plaid environment: %q", env)
	}

	return plaid.NewAPIClient(configuration), nil
}

// Ledger reads transaction deltas and balances from Plaid.
type Ledger struct {
	client *plaid.APIClient
}

func NewLedger(client *plaid.APIClient) *Ledger {
	return &Ledger{client: client}
}

func (l *Ledger) FetchDelta(ctx context.Context, accessToken string, cursor *string) (*models.DeltaPage, error) {
	request := plaid.NewTransactionsSyncRequest(accessToken)
	if cursor != nil {
		request.SetCursor(*cursor)
	}
	request.SetCount(syncPageSize)

	resp, _, err := l.client.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
	if err != nil {
		return nil, describeError(err)
	}

	return toDeltaPage(resp), nil
}

func (l *Ledger) FetchBalances(ctx context.Context, accessToken string) ([]models.RemoteBalance, error) {
	request := plaid.NewAccountsBalanceGetRequest(accessToken)

	resp, _, err := l.client.PlaidApi.AccountsBalanceGet(ctx).AccountsBalanceGetRequest(*request).Execute()
	if err != nil {
		return nil, describeError(err)
	}

	return toRemoteBalances(resp.GetAccounts()), nil
}

// FetchWebhookKey returns the JWK Plaid signed a webhook with.
func (l *Ledger) FetchWebhookKey(ctx context.Context, kid string) (*plaid.JWKPublicKey, error) {
	request := plaid.NewWebhookVerificationKeyGetRequest(kid)

	resp, _, err := l.client.PlaidApi.WebhookVerificationKeyGet(ctx).WebhookVerificationKeyGetRequest(*request).Execute()
	if err != nil {
		return nil, describeError(err)
	}

	key := resp.GetKey()
	return &key, nil
}

func toDeltaPage(resp plaid.TransactionsSyncResponse) *models.DeltaPage {
	page := &models.DeltaPage{
		Added:      toRemoteTransactions(resp.GetAdded()),
		Modified:   toRemoteTransactions(resp.GetModified()),
		Removed:    make([]string, 0, len(resp.GetRemoved())),
		NextCursor: resp.GetNextCursor(),
		HasMore:    resp.GetHasMore(),
	}
	for _, removed := range resp.GetRemoved() {
		page.Removed = append(page.Removed, removed.GetTransactionId())
	}
	return page
}

func toRemoteTransactions(txns []plaid.Transaction) []models.RemoteTransaction {
	out := make([]models.RemoteTransaction, 0, len(txns))
	for _, txn := range txns {
		category := txn.GetPersonalFinanceCategory()
		out = append(out, models.RemoteTransaction{
			TransactionID:    txn.GetTransactionId(),
			AccountID:        txn.GetAccountId(),
			Amount:           decimal.NewFromFloat(txn.GetAmount()),
			Date:             txn.GetDate(),
			Name:             txn.GetName(),
			MerchantName:     txn.GetMerchantName(),
			Pending:          txn.GetPending(),
			PrimaryCategory:  category.GetPrimary(),
			DetailedCategory: category.GetDetailed(),
		})
	}
	return out
}

func toRemoteBalances(accounts []plaid.AccountBase) []models.RemoteBalance {
	out := make([]models.RemoteBalance, 0, len(accounts))
	for _, account := range accounts {
		balances := account.GetBalances()
		out = append(out, models.RemoteBalance{
			AccountID: account.GetAccountId(),
			Current:   optionalDecimal(balances.GetCurrentOk()),
			Available: optionalDecimal(balances.GetAvailableOk()),
		})
	}
	return out
}

func optionalDecimal(v *float64, ok bool) *decimal.Decimal {
	if !ok || v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}

// describeError surfaces Plaid's error code and message instead of the bare
// HTTP status.
func describeError(err error) error {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return err
	}
	return fmt.Errorf("plaid %s: %s", plaidErr.GetErrorCode(), plaidErr.GetErrorMessage())
}
