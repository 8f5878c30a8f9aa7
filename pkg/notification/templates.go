package notification

var validationTemplate = NoticeTemplate{
	Subject: "Validate your account",
	Text: `Hello {{.FirstName}},

Please validate your {{.AppName}} account by following this link:

{{.Link}}
`,
	Html: `<p>Hello {{.FirstName}},</p>
<p>Please validate your {{.AppName}} account by following <a href="{{.Link}}">this link</a>.</p>`,
}

var resetTemplate = NoticeTemplate{
	Subject: "Reset your password",
	Text: `Hello {{.FirstName}},

A password reset was requested for your {{.AppName}} account. Follow this link to continue:

{{.Link}}

If you did not request this, you can ignore this email.
`,
	Html: `<p>Hello {{.FirstName}},</p>
<p>A password reset was requested for your {{.AppName}} account. Follow <a href="{{.Link}}">this link</a> to continue.</p>
<p>If you did not request this, you can ignore this email.</p>`,
}
