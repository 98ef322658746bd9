package main

import (
	"fmt"
	"io"

	"github.com/hostwise/assistant/internal/purchase"
)

// purchaseNavigator hands the checkout to the user's browser by printing the
// URL. The chat session ends afterwards.
func purchaseNavigator(out io.Writer) purchase.Navigator {
	return purchase.NavigatorFunc(func(url string) error {
		_, err := fmt.Fprintf(out, "Abra o link para concluir a compra:\n%s\n", url)
		return err
	})
}
