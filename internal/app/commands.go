package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/go-faster/errors"

	"github.com/xenking/pasta-storefront/internal/domain/auth"
	"github.com/xenking/pasta-storefront/internal/domain/cart"
	"github.com/xenking/pasta-storefront/internal/domain/order"
	"github.com/xenking/pasta-storefront/internal/domain/product"
	"github.com/xenking/pasta-storefront/internal/export"
	"github.com/xenking/pasta-storefront/internal/notify"
	"github.com/xenking/pasta-storefront/internal/views"
)

// ErrUsage is returned for unknown subcommands or malformed arguments.
var ErrUsage = errors.New("usage")

// reportedError marks an error that was already shown to the user.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error { return e.error }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err}
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string) error
}

func (a *App) commands() []command {
	return []command{
		{name: "products", usage: "products [-category c] [-q text]", run: a.cmdProducts},
		{name: "cart", usage: "cart show|add <id>|set <id> <qty>|remove <id>|clear", run: a.cmdCart},
		{name: "checkout", usage: "checkout", run: a.cmdCheckout},
		{name: "orders", usage: "orders", run: a.cmdOrders},
		{name: "login", usage: "login -email e -password p", run: a.cmdLogin},
		{name: "logout", usage: "logout", run: a.cmdLogout},
		{name: "me", usage: "me", run: a.cmdMe},
		{name: "register", usage: "register -email e -password p -first f -last l [-phone] [-address] [-city] [-zip]", run: a.cmdRegister},
		{name: "confirm", usage: "confirm <token>", run: a.cmdConfirm},
		{name: "forgot-password", usage: "forgot-password <email>", run: a.cmdForgotPassword},
		{name: "reset-password", usage: "reset-password <token> <new-password>", run: a.cmdResetPassword},
		{name: "profile", usage: "profile [-first f] [-last l] [-phone p] [-address a]", run: a.cmdProfile},
		{name: "admin", usage: "admin products create|update <id>|delete <id> | admin orders [list|status <id> <STATUS>|export <file>]", run: a.cmdAdmin},
		{name: "status", usage: "status", run: a.cmdStatus},
	}
}

// Exec runs the subcommand named by args[0]. Errors not already shown by a
// view are reported through the notifier before being returned.
func (a *App) Exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage()
		return ErrUsage
	}
	for _, c := range a.commands() {
		if c.name != args[0] {
			continue
		}
		err := c.run(ctx, args[1:])
		if err != nil && !errors.Is(err, ErrUsage) {
			var rErr reportedError
			if !errors.As(err, &rErr) {
				notify.Failure(ctx, a.notifier, err)
			}
		}
		if errors.Is(err, ErrUsage) {
			a.printf("usage: storefront %s\n", c.usage)
		}
		return err
	}
	a.usage()
	return errors.Wrapf(ErrUsage, "unknown command %q", args[0])
}

func (a *App) usage() {
	a.printf("usage: storefront <command> [arguments]\n\ncommands:\n")
	for _, c := range a.commands() {
		a.printf("  %s\n", c.usage)
	}
}

func (a *App) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

func (a *App) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(ErrUsage, err.Error())
	}
	return nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrapf(ErrUsage, "invalid id %q", raw)
	}
	return id, nil
}

// --- Catalog ---

func (a *App) cmdProducts(ctx context.Context, args []string) error {
	fs := newFlagSet("products")
	category := fs.String("category", "", "filter by category")
	query := fs.String("q", "", "search name and description")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	v := views.NewProducts(a.client.Products(), a.notifier)
	if err := v.Load(ctx); err != nil {
		return reported(err)
	}

	a.printProducts(v.Filter(*query, *category))
	if cats := v.Categories(); len(cats) > 0 {
		a.printf("\ncategories: %s\n", strings.Join(cats, ", "))
	}
	return nil
}

func (a *App) printProducts(products []product.Product) {
	if len(products) == 0 {
		a.printf("No products found\n")
		return
	}
	w := a.table()
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
	for _, p := range products {
		stock := strconv.Itoa(p.Stock)
		if !p.InStock() {
			stock = "out of stock"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, p.Price.StringFixed(2), stock)
	}
	_ = w.Flush()
}

// findProduct looks a product up in the live catalog.
func (a *App) findProduct(ctx context.Context, id int64) (product.Product, error) {
	products, err := a.client.Products().List(ctx)
	if err != nil {
		return product.Product{}, errors.Wrap(err, "list products")
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return product.Product{}, errors.Wrapf(product.ErrNotFound, "id %d", id)
}

// --- Cart ---

func (a *App) cmdCart(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"show"}
	}
	switch sub, rest := args[0], args[1:]; sub {
	case "show":
		a.printCart(a.cart.Items())
		return nil
	case "add":
		if len(rest) != 1 {
			return ErrUsage
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		p, err := a.findProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := a.cart.AddItem(ctx, p); err != nil {
			return errors.Wrap(err, "save cart")
		}
		a.notifier.Success(ctx, fmt.Sprintf("Added %s (now %d in cart)", p.Name, a.cart.Quantity(id)))
		return nil
	case "set":
		if len(rest) != 2 {
			return ErrUsage
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		qty, err := strconv.Atoi(rest[1])
		if err != nil {
			return errors.Wrapf(ErrUsage, "invalid quantity %q", rest[1])
		}
		if err := a.cart.UpdateQuantity(ctx, id, qty); err != nil {
			return errors.Wrap(err, "save cart")
		}
		a.printCart(a.cart.Items())
		return nil
	case "remove":
		if len(rest) != 1 {
			return ErrUsage
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		if err := a.cart.RemoveItem(ctx, id); err != nil {
			return errors.Wrap(err, "save cart")
		}
		a.printCart(a.cart.Items())
		return nil
	case "clear":
		if err := a.cart.Clear(ctx); err != nil {
			return errors.Wrap(err, "save cart")
		}
		a.notifier.Success(ctx, "Cart cleared")
		return nil
	default:
		return ErrUsage
	}
}

func (a *App) printCart(items []cart.LineItem) {
	if len(items) == 0 {
		a.printf("Your cart is empty\n")
		return
	}
	w := a.table()
	_, _ = fmt.Fprintln(w, "ID\tNAME\tQTY\tPRICE\tSUBTOTAL")
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
			item.ID, item.Name, item.Quantity, item.Price.StringFixed(2), item.Subtotal().StringFixed(2))
	}
	_ = w.Flush()
	a.printf("\n%d items, total %s\n", cart.TotalItems(items), cart.TotalPrice(items).StringFixed(2))
}

func (a *App) cmdCheckout(ctx context.Context, _ []string) error {
	res, err := a.checkout.Checkout(ctx)
	if err != nil {
		return err
	}
	if res.Redirect() {
		a.notifier.Success(ctx, "Order received, complete the payment to confirm it")
		a.printf("Continue to payment: %s\n", res.PaymentURL)
		return nil
	}
	if res.Order != nil {
		a.notifier.Success(ctx, fmt.Sprintf("Order #%d received, we are preparing your pasta", res.Order.ID))
		return nil
	}
	a.notifier.Success(ctx, "Order received, we are preparing your pasta")
	return nil
}

// --- Orders ---

func (a *App) cmdOrders(ctx context.Context, _ []string) error {
	v := views.NewOrders(a.client.Orders(), a.session, a.notifier, views.ScopeMine)
	if err := v.Load(ctx); err != nil {
		return reported(err)
	}
	a.printOrders(v.Items(), false)
	return nil
}

func (a *App) printOrders(orders []order.Order, withBuyer bool) {
	if len(orders) == 0 {
		a.printf("No orders yet\n")
		return
	}
	w := a.table()
	header := "ID\tDATE\tSTATUS\tTOTAL\tITEMS"
	if withBuyer {
		header += "\tBUYER"
	}
	_, _ = fmt.Fprintln(w, header)
	for _, o := range orders {
		names := make([]string, 0, len(o.Items))
		for _, item := range o.Items {
			names = append(names, fmt.Sprintf("%dx %s", item.Quantity, item.Product.Name))
		}
		line := fmt.Sprintf("%d\t%s\t%s\t%s\t%s",
			o.ID, o.CreatedAt.Local().Format("2006-01-02 15:04"), o.Status, o.Total.StringFixed(2), strings.Join(names, ", "))
		if withBuyer {
			buyer := ""
			if o.Buyer != nil {
				buyer = strings.TrimSpace(o.Buyer.FirstName+" "+o.Buyer.LastName) + " <" + o.Buyer.Email + ">"
			}
			line += "\t" + buyer
		}
		_, _ = fmt.Fprintln(w, line)
	}
	_ = w.Flush()
}

// --- Account ---

func (a *App) cmdLogin(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return ErrUsage
	}

	u, err := a.session.Login(ctx, auth.Credentials{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	a.notifier.Success(ctx, fmt.Sprintf("Welcome back, %s!", displayName(u)))
	return nil
}

func displayName(u *auth.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Email
}

func (a *App) cmdLogout(ctx context.Context, _ []string) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	a.notifier.Success(ctx, "Signed out")
	return nil
}

func (a *App) cmdMe(ctx context.Context, _ []string) error {
	u, err := a.session.Refresh(ctx)
	if err != nil {
		return err
	}
	a.printUser(u)
	return nil
}

func (a *App) printUser(u *auth.User) {
	w := a.table()
	_, _ = fmt.Fprintf(w, "Name:\t%s\n", u.FullName())
	_, _ = fmt.Fprintf(w, "Email:\t%s\n", u.Email)
	_, _ = fmt.Fprintf(w, "Role:\t%s\n", u.Role)
	_, _ = fmt.Fprintf(w, "Phone:\t%s\n", u.Phone)
	_, _ = fmt.Fprintf(w, "Address:\t%s\n", u.Address)
	if u.City != "" {
		_, _ = fmt.Fprintf(w, "City:\t%s\n", u.City)
	}
	_ = w.Flush()
	if !u.CanReceiveOrders() {
		a.printf("\nAdd your address and phone before checking out: storefront profile -address ... -phone ...\n")
	}
}

func (a *App) cmdRegister(ctx context.Context, args []string) error {
	var reg auth.Registration
	fs := newFlagSet("register")
	fs.StringVar(&reg.Email, "email", "", "account email")
	fs.StringVar(&reg.Password, "password", "", "account password")
	fs.StringVar(&reg.FirstName, "first", "", "first name")
	fs.StringVar(&reg.LastName, "last", "", "last name")
	fs.StringVar(&reg.Phone, "phone", "", "phone")
	fs.StringVar(&reg.Address, "address", "", "delivery address")
	fs.StringVar(&reg.City, "city", "", "city")
	fs.StringVar(&reg.ZipCode, "zip", "", "zip code")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if reg.Email == "" || reg.Password == "" || reg.FirstName == "" || reg.LastName == "" {
		return ErrUsage
	}

	if err := a.client.Auth().Register(ctx, reg); err != nil {
		return err
	}
	a.notifier.Success(ctx, "Account created, check your email to confirm it")
	return nil
}

func (a *App) cmdConfirm(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	if err := a.client.Auth().Confirm(ctx, args[0]); err != nil {
		return err
	}
	a.notifier.Success(ctx, "Account confirmed, you can log in now")
	return nil
}

func (a *App) cmdForgotPassword(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	if err := a.client.Auth().ForgotPassword(ctx, args[0]); err != nil {
		return err
	}
	a.notifier.Success(ctx, "If the email is registered, a reset link is on its way")
	return nil
}

func (a *App) cmdResetPassword(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	if err := a.client.Auth().ResetPassword(ctx, args[0], args[1]); err != nil {
		return err
	}
	a.notifier.Success(ctx, "Password updated, you can log in now")
	return nil
}

func (a *App) cmdProfile(ctx context.Context, args []string) error {
	cur := a.session.Current()
	if err := auth.RequireUser(cur); err != nil {
		return err
	}

	update := auth.ProfileFrom(cur)
	fs := newFlagSet("profile")
	fs.StringVar(&update.FirstName, "first", update.FirstName, "first name")
	fs.StringVar(&update.LastName, "last", update.LastName, "last name")
	fs.StringVar(&update.Phone, "phone", update.Phone, "phone")
	fs.StringVar(&update.Address, "address", update.Address, "delivery address")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NFlag() == 0 {
		a.printUser(cur)
		return nil
	}

	u, err := a.session.UpdateProfile(ctx, update)
	if err != nil {
		return err
	}
	a.notifier.Success(ctx, "Profile updated")
	a.printUser(u)
	return nil
}

// --- Admin ---

func (a *App) cmdAdmin(ctx context.Context, args []string) error {
	if err := auth.RequireAdmin(a.session.Current()); err != nil {
		return err
	}
	if len(args) == 0 {
		return ErrUsage
	}
	switch args[0] {
	case "products":
		return a.cmdAdminProducts(ctx, args[1:])
	case "orders":
		return a.cmdAdminOrders(ctx, args[1:])
	default:
		return ErrUsage
	}
}

// productFlags binds the product form fields to fs.
func productFlags(fs *flag.FlagSet, form *product.Form) {
	fs.StringVar(&form.Name, "name", form.Name, "product name")
	fs.StringVar(&form.Description, "description", form.Description, "description")
	fs.StringVar(&form.Category, "category", form.Category, "category")
	fs.StringVar(&form.Price, "price", form.Price, "unit price, decimal comma accepted")
	fs.StringVar(&form.Stock, "stock", form.Stock, "units in stock")
	fs.StringVar(&form.Image, "image", form.Image, "image URL")
}

func (a *App) cmdAdminProducts(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	v := views.NewProducts(a.client.Products(), a.notifier)

	switch sub, rest := args[0], args[1:]; sub {
	case "create":
		form := product.Form{Category: product.DefaultCategory}
		fs := newFlagSet("create")
		productFlags(fs, &form)
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		in, err := form.Parse()
		if err != nil {
			return err
		}
		p, err := v.Create(ctx, in)
		if err != nil {
			return reported(err)
		}
		if p != nil {
			a.printProducts([]product.Product{*p})
		}
		return nil
	case "update":
		if len(rest) == 0 {
			return ErrUsage
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		if err := v.Load(ctx); err != nil {
			return reported(err)
		}
		existing, ok := v.Get(id)
		if !ok {
			return errors.Wrapf(product.ErrNotFound, "id %d", id)
		}
		form := product.FormFrom(existing)
		fs := newFlagSet("update")
		productFlags(fs, &form)
		if err := parseFlags(fs, rest[1:]); err != nil {
			return err
		}
		in, err := form.Parse()
		if err != nil {
			return err
		}
		p, err := v.Update(ctx, id, in)
		if err != nil {
			return reported(err)
		}
		a.printProducts([]product.Product{*p})
		return nil
	case "delete":
		if len(rest) != 1 {
			return ErrUsage
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		return reported(v.Delete(ctx, id))
	default:
		return ErrUsage
	}
}

func (a *App) cmdAdminOrders(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	v := views.NewOrders(a.client.Orders(), a.session, a.notifier, views.ScopeAll)

	switch sub, rest := args[0], args[1:]; sub {
	case "list":
		if err := v.Load(ctx); err != nil {
			return reported(err)
		}
		a.printOrders(v.Items(), true)
		return nil
	case "status":
		if len(rest) != 2 {
			return ErrUsage
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		status, err := order.ParseStatus(rest[1])
		if err != nil {
			return err
		}
		if err := v.Load(ctx); err != nil {
			return reported(err)
		}
		if err := v.UpdateStatus(ctx, id, status); err != nil {
			return reported(err)
		}
		a.printOrders(v.Items(), true)
		return nil
	case "export":
		if len(rest) != 1 {
			return ErrUsage
		}
		if err := v.Load(ctx); err != nil {
			return reported(err)
		}
		n, err := a.exportOrders(ctx, rest[0], v.Items())
		if err != nil {
			return err
		}
		a.notifier.Success(ctx, fmt.Sprintf("Exported %d orders to %s", n, rest[0]))
		return nil
	default:
		return ErrUsage
	}
}

// exportOrders writes the export next to path and renames it into place.
func (a *App) exportOrders(ctx context.Context, path string, orders []order.Order) (int, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, errors.Wrap(err, "create export file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := export.Orders(ctx, tmp, orders)
	if err != nil {
		_ = tmp.Close()
		return 0, errors.Wrap(err, "export orders")
	}
	if err := tmp.Close(); err != nil {
		return 0, errors.Wrap(err, "close export file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, errors.Wrap(err, "move export file")
	}
	return n, nil
}

// --- Status ---

func (a *App) cmdStatus(ctx context.Context, _ []string) error {
	report := a.probe.Run(ctx)
	if err := report.WriteJSON(a.out); err != nil {
		return errors.Wrap(err, "write report")
	}
	if !report.Healthy() {
		return reported(errors.Errorf("unhealthy: %v", report.Failures()))
	}
	return nil
}
