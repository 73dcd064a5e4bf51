package exchanges

// Default captcha widget and agreement selectors shared by most sign-up pages.
var (
	recaptchaWidgets = []string{".g-recaptcha[data-sitekey]", "[data-sitekey]"}
	termsCheckboxes  = []string{"input[name=agree]", "input[name=terms]", "#agree"}
)

// Advego is the advego.com copywriting and micro-task exchange.
func Advego(opts ...Option) *Simulated {
	form := Form{
		URL: "https://advego.com/register/",
		Fields: []Field{
			{Kind: FieldLogin, Selectors: []string{"input[name=login]", "#login"}, Required: true},
			{Kind: FieldEmail, Selectors: []string{"input[name=email]", "#email"}, Required: true},
			{Kind: FieldPassword, Selectors: []string{"input[name=password]", "#password"}, Required: true},
			{Kind: FieldPasswordConfirm, Selectors: []string{"input[name=password2]", "input[name=password_confirm]"}},
		},
		Checkboxes: termsCheckboxes,
		Submit:     []string{"button[type=submit]", "input[type=submit]"},
		Captcha:    recaptchaWidgets,
		Success:    []string{".user-menu", ".registration-success", "a[href*=logout]"},
	}
	templates := []taskTemplate{
		{"click", "Visit the advertiser site"},
		{"review", "Write a short product review"},
		{"comment", "Leave a comment on a forum thread"},
	}
	return newSimulated("advego", "Advego", form, "0.10", "5.00", templates, opts...)
}

// Workzilla is the work-zilla.com freelance task board.
func Workzilla(opts ...Option) *Simulated {
	form := Form{
		URL: "https://client.work-zilla.com/registration",
		Fields: []Field{
			{Kind: FieldEmail, Selectors: []string{"input[name=email]", "input[type=email]"}, Required: true},
			{Kind: FieldPassword, Selectors: []string{"input[name=password]", "input[type=password]"}, Required: true},
			{Kind: FieldDisplayName, Selectors: []string{"input[name=name]"}},
		},
		Checkboxes: termsCheckboxes,
		Submit:     []string{"button[type=submit]"},
		Captcha:    recaptchaWidgets,
		Success:    []string{".profile-menu", ".registration-complete"},
	}
	templates := []taskTemplate{
		{"text", "Rewrite a product description"},
		{"research", "Collect contact details from a website"},
		{"testing", "Check a landing page in several browsers"},
	}
	return newSimulated("workzilla", "Workzilla", form, "30.00", "500.00", templates, opts...)
}

// Kwork is the kwork.ru fixed-price services marketplace.
func Kwork(opts ...Option) *Simulated {
	form := Form{
		URL: "https://kwork.ru/signup",
		Fields: []Field{
			{Kind: FieldLogin, Selectors: []string{"input[name=login]", "input[name=username]"}, Required: true},
			{Kind: FieldEmail, Selectors: []string{"input[name=email]"}, Required: true},
			{Kind: FieldPassword, Selectors: []string{"input[name=password]"}, Required: true},
		},
		Checkboxes: termsCheckboxes,
		Submit:     []string{"button[type=submit]", ".js-signup-submit"},
		Captcha:    recaptchaWidgets,
		Success:    []string{".header-user", ".signup-success"},
	}
	templates := []taskTemplate{
		{"design", "Draw a simple banner"},
		{"text", "Translate a short article"},
		{"seo", "Compile a keyword list"},
	}
	return newSimulated("kwork", "Kwork", form, "100.00", "1000.00", templates, opts...)
}

// FL is the fl.ru freelance project exchange.
func FL(opts ...Option) *Simulated {
	form := Form{
		URL: "https://www.fl.ru/account/registration/",
		Fields: []Field{
			{Kind: FieldLogin, Selectors: []string{"input[name=login]"}, Required: true},
			{Kind: FieldEmail, Selectors: []string{"input[name=email]"}, Required: true},
			{Kind: FieldPassword, Selectors: []string{"input[name=password]"}, Required: true},
			{Kind: FieldDisplayName, Selectors: []string{"input[name=uname]", "input[name=name]"}},
		},
		Checkboxes: termsCheckboxes,
		Submit:     []string{"button[type=submit]"},
		Captcha:    recaptchaWidgets,
		Success:    []string{".b-user-menu", ".registration-done"},
	}
	templates := []taskTemplate{
		{"project", "Fix a layout bug"},
		{"text", "Proofread a landing page"},
	}
	return newSimulated("fl", "FL.ru", form, "300.00", "3000.00", templates, opts...)
}

// TextSale is the textsale.ru article shop. Its sign-up accepts submissions without a captcha token.
func TextSale(opts ...Option) *Simulated {
	form := Form{
		URL: "https://www.textsale.ru/registration",
		Fields: []Field{
			{Kind: FieldLogin, Selectors: []string{"input[name=login]"}, Required: true},
			{Kind: FieldEmail, Selectors: []string{"input[name=email]"}, Required: true},
			{Kind: FieldPassword, Selectors: []string{"input[name=password]"}, Required: true},
			{Kind: FieldPasswordConfirm, Selectors: []string{"input[name=password2]"}},
		},
		Checkboxes:      termsCheckboxes,
		Submit:          []string{"input[type=submit]", "button[type=submit]"},
		Captcha:         recaptchaWidgets,
		Success:         []string{".cabinet", ".registration-ok"},
		CaptchaOptional: true,
	}
	templates := []taskTemplate{
		{"article", "Write a 2000 character article"},
		{"rewrite", "Rewrite a news item"},
	}
	return newSimulated("textsale", "TextSale", form, "50.00", "600.00", templates, opts...)
}

// DefaultCatalog returns every supported marketplace configured with opts.
func DefaultCatalog(opts ...Option) Catalog {
	return NewCatalog(
		Advego(opts...),
		Workzilla(opts...),
		Kwork(opts...),
		FL(opts...),
		TextSale(opts...),
	)
}
